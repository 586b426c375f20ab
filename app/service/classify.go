package service

import (
	"strings"

	"github.com/labfold/boltzweb/app/job"
)

// Stream identifies the subprocess output stream a line came from
type Stream int

// output streams of the prediction process
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// stderr lines containing any of these are reported as errors
var errorKeywords = []string{"msa server", "error", "failed", "exception"}

// stdout markers adding a synthetic progress message, first match wins
var progressMarkers = []struct {
	keyword string
	text    string
}{
	{keyword: "generating msa", text: "Running multiple sequence alignment..."},
	{keyword: "running inference", text: "Running inference..."},
	{keyword: "completed", text: "Prediction completed!"},
}

// Classify turns a raw output line into status messages. Blank lines produce nothing.
// Stdout lines pass through as progress, and may add one synthetic progress message after the raw one.
// Stderr lines become errors or infos depending on keywords. Matching is case-insensitive.
func Classify(stream Stream, line string) []job.Message {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)

	if stream == Stderr {
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				return []job.Message{job.NewMessage(job.KindError, "Error: "+line)}
			}
		}
		return []job.Message{job.NewMessage(job.KindInfo, "Info: "+line)}
	}

	res := []job.Message{job.NewMessage(job.KindProgress, line)}
	for _, m := range progressMarkers {
		if strings.Contains(lower, m.keyword) {
			res = append(res, job.NewMessage(job.KindProgress, m.text))
			break
		}
	}
	return res
}
