// Package job defines prediction jobs and the per-job state shared between the launcher
// and status polls: an ordered drainable message channel, an append-only job log and the
// registry keeping both for the life of the process.
package job

//go:generate go run github.com/go-pkgz/enum@latest -type kind -lower

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	resultsPrefix = "boltz_results"
	artifactExt   = "cif"
	jobDirPrefix  = "output_"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// kind is a classification of a status message.
// This is an unexported type used only as input for the code generator.
// Use the exported Kind type and its constants in actual code.
type kind int

const (
	kindLifecycle kind = iota
	kindProgress
	kindInfo
	kindError
	kindDownloadReady
)

// Job is a single submitted prediction run. Never mutated after creation.
type Job struct {
	ID            string
	InputPath     string
	OutputDir     string
	CreatedAt     time.Time
	UsePotentials bool
}

// Message is a classified status update delivered to pollers
type Message struct {
	Text  string    `json:"text"`
	Kind  Kind      `json:"kind"`
	Time  time.Time `json:"time"`
	Final bool      `json:"final,omitempty"` // set on the terminal message only
}

// NewMessage makes a message stamped with the current time
func NewMessage(k Kind, text string) Message {
	return Message{Text: text, Kind: k, Time: time.Now()}
}

// NewFinal makes the terminal message of a job
func NewFinal(k Kind, text string) Message {
	m := NewMessage(k, text)
	m.Final = true
	return m
}

// DownloadReady makes the terminal message announcing available results
func DownloadReady(id string) Message {
	return NewFinal(KindDownloadReady, "download_ready:"+id)
}

// ValidID checks if id is safe to embed into file names
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Layout maps job ids to their files. All paths derive from the id only,
// so any request can locate a job's files without shared state.
type Layout struct {
	InputDir  string
	OutputDir string
}

// InputPath returns location of the generated FASTA input, inputs/input_<id>.fasta
func (l Layout) InputPath(id string) string {
	return filepath.Join(l.InputDir, l.Stem(id)+".fasta")
}

// Stem is the input file name without extension, boltz names all results after it
func (l Layout) Stem(id string) string {
	return "input_" + id
}

// JobDir returns per-job output directory passed to boltz as --out_dir
func (l Layout) JobDir(id string) string {
	return filepath.Join(l.OutputDir, jobDirPrefix+id)
}

// LogPath returns location of the job log
func (l Layout) LogPath(id string) string {
	return filepath.Join(l.JobDir(id), fmt.Sprintf("boltz_job_%s.log", id))
}

// ArtifactPath returns location of the first model structure boltz writes on success,
// <job dir>/boltz_results_<stem>/predictions/<stem>/<stem>_model_0.cif
func (l Layout) ArtifactPath(id string) string {
	stem := l.Stem(id)
	return filepath.Join(l.JobDir(id), resultsPrefix+"_"+stem, "predictions", stem,
		fmt.Sprintf("%s_model_0.%s", stem, artifactExt))
}

// ArtifactName is the download file name of the structure
func (l Layout) ArtifactName(id string) string {
	return fmt.Sprintf("%s_model_0.%s", l.Stem(id), artifactExt)
}

// IDFromJobDir extracts job id from a job directory name, i.e. output_<id>
func (l Layout) IDFromJobDir(name string) (string, bool) {
	if !strings.HasPrefix(name, jobDirPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, jobDirPrefix)
	return id, ValidID(id)
}
