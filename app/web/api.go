package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/labfold/boltzweb/app/fasta"
	"github.com/labfold/boltzweb/app/job"
	"github.com/labfold/boltzweb/app/service"
)

const msgInProgress = "Prediction in progress..."

// SubmitResponse is the JSON response for POST /submit
type SubmitResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// StatusResponse is the JSON response for GET /status/{id}.
// Status keeps message texts only, for clients not interested in kinds.
type StatusResponse struct {
	Status   []string      `json:"status"`
	Messages []job.Message `json:"messages"`
	Finished bool          `json:"finished"`
}

// handleSubmit validates the form, writes the job input and starts prediction
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeJSONError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	seqs, err := formSequences(r)
	if err != nil {
		log.Printf("[DEBUG] rejected submission: %v", err)
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := service.SubmitRequest{Sequences: seqs, UsePotentials: r.FormValue("use_physical_potentials") == "on"}
	j, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, fasta.ErrTooManySequences) {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[ERROR] failed to submit prediction: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to start prediction")
		return
	}

	log.Printf("[INFO] prediction %s started from %s", j.ID, r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, SubmitResponse{Status: "Prediction started", JobID: j.ID})
}

// formSequences extracts and validates the primary sequence and additional inputs.
// Blank additional inputs are skipped, inputs without a matching type are ignored.
func formSequences(r *http.Request) ([]fasta.Sequence, error) {
	primary := fasta.Sequence{Type: r.FormValue("primary_type"), Data: r.FormValue("primary_sequence")}
	if strings.TrimSpace(primary.Data) == "" {
		return nil, errors.New("At least one non-empty sequence is required") //nolint:staticcheck // shown to users as is
	}
	if err := fasta.Validate(primary); err != nil {
		return nil, err
	}
	res := []fasta.Sequence{primary}

	data, types := r.Form["additional_input[]"], r.Form["input_type[]"]
	for i := 0; i < len(data) && i < len(types); i++ {
		if strings.TrimSpace(data[i]) == "" {
			continue
		}
		seq := fasta.Sequence{Type: types[i], Data: data[i]}
		if err := fasta.Validate(seq); err != nil {
			return nil, err
		}
		res = append(res, seq)
	}
	return res, nil
}

// handleStatus returns messages accumulated since the previous poll of the job
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !job.ValidID(id) {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	poll, ok := s.jobs.Poll(id)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := StatusResponse{Status: make([]string, 0, len(poll.Messages)), Messages: poll.Messages, Finished: poll.Finished}
	if resp.Messages == nil {
		resp.Messages = []job.Message{}
	}
	for _, m := range poll.Messages {
		resp.Status = append(resp.Status, m.Text)
	}
	if len(resp.Status) == 0 && !poll.Finished {
		resp.Status = append(resp.Status, msgInProgress)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}
