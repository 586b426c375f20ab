package web

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/labfold/boltzweb/app/job"
)

const cifContentType = "chemical/x-cif"

// handleDownloadCIF sends the predicted structure as attachment
func (s *Server) handleDownloadCIF(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobDir(w, r.PathValue("id"))
	if !ok {
		return
	}
	s.sendFile(w, r, s.layout.ArtifactPath(id), cifContentType, s.layout.ArtifactName(id),
		"CIF file not found. Prediction may not have completed.")
}

// handleDownloadLog sends the job log as attachment
func (s *Server) handleDownloadLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobDir(w, r.PathValue("id"))
	if !ok {
		return
	}
	path := s.layout.LogPath(id)
	s.sendFile(w, r, path, "text/plain; charset=utf-8", filepath.Base(path), "Log file not found.")
}

// handleStructure serves the predicted structure inline, for structure viewers, /structures/<id>.cif
func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	id, found := strings.CutSuffix(r.PathValue("file"), ".cif")
	if !found || !job.ValidID(id) {
		s.writeJSONError(w, http.StatusNotFound, "structure not found")
		return
	}
	s.sendFile(w, r, s.layout.ArtifactPath(id), cifContentType, "", "structure not found")
}

// handleDownloadZip streams all files of the job output directory as zip archive
func (s *Server) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobDir(w, r.PathValue("id"))
	if !ok {
		return
	}
	root := s.layout.JobDir(id)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "boltz_output_"+id+".zip"))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addToZip(zw, path, filepath.ToSlash(rel))
	})
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		// headers are gone already, the client gets a truncated archive
		log.Printf("[WARN] failed to send zip of %s to %s: %v", id, r.RemoteAddr, err)
	}
}

func addToZip(zw *zip.Writer, path, name string) error {
	fh, err := os.Open(path) //nolint:gosec // path from walking job directory
	if err != nil {
		return fmt.Errorf("can't open %s: %w", name, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return fmt.Errorf("can't stat %s: %w", name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("can't make zip header for %s: %w", name, err)
	}
	hdr.Name, hdr.Method = name, zip.Deflate
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("can't add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, fh); err != nil {
		return fmt.Errorf("can't write %s: %w", name, err)
	}
	return nil
}

// jobDir checks the id and existence of its output directory, writes 404 if either fails
func (s *Server) jobDir(w http.ResponseWriter, id string) (string, bool) {
	if !job.ValidID(id) {
		s.writeJSONError(w, http.StatusNotFound, "Output directory not found")
		return "", false
	}
	if fi, err := os.Stat(s.layout.JobDir(id)); err != nil || !fi.IsDir() {
		s.writeJSONError(w, http.StatusNotFound, "Output directory not found")
		return "", false
	}
	return id, true
}

// sendFile serves a regular file, as attachment if name set. Missing file responds with 404 and notFoundMsg.
func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, path, contentType, name, notFoundMsg string) {
	fh, err := os.Open(path) //nolint:gosec // path derived from validated job id
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		s.writeJSONError(w, http.StatusNotFound, notFoundMsg)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	http.ServeContent(w, r, "", fi.ModTime(), fh)
}
