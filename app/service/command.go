package service

import "github.com/labfold/boltzweb/app/job"

// CommandLine builds boltz invocation for the job,
// `<binary> predict <input> --use_msa_server --out_dir <outdir> [--use_potentials]`
func CommandLine(binary string, j job.Job) []string {
	res := []string{binary, "predict", j.InputPath, "--use_msa_server", "--out_dir", j.OutputDir}
	if j.UsePotentials {
		res = append(res, "--use_potentials")
	}
	return res
}
