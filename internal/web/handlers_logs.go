package web

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"

	"github.com/JonMunkholm/taska/internal/jobs"
	"github.com/JonMunkholm/taska/internal/logging"
)

// handleSubmitLogJob queues an artifact job for the date in the URL.
func (s *Server) handleSubmitLogJob(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	id, err := s.jobs.Submit(r.Context(), date)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id.String()})
}

// handleLogJobStatus reports a job's status. Unknown ids are 404.
func (s *Server) handleLogJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view := s.jobs.StatusOf(id)
	if view.Status == jobs.StatusNotFound {
		respondError(w, r, errors.Newf(errors.CodeNotFound, "log creation task not found: %s", id))
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleLogJobFile streams a completed job's artifact.
func (s *Server) handleLogJobFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	artifact, ok := s.jobs.ArtifactOf(id)
	if !ok {
		respondError(w, r, errors.Newf(errors.CodeNotFound, "log file not ready or task not found: %s", id))
		return
	}

	s.streamFile(w, r, artifact.Path, path.Base(artifact.Path))
}

// handleLogJobStats reports pool and registry counts.
func (s *Server) handleLogJobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Stats())
}

// handleLogRotation streams a single rotated log file.
// Query params: rotation (required, non-negative integer)
func (s *Server) handleLogRotation(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := jobs.ValidateDate(date); err != nil {
		respondError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("rotation")
	rotation, err := strconv.Atoi(raw)
	if err != nil || rotation < 0 {
		respondError(w, r, invalidInput("rotation must be a non-negative integer, got %q", raw))
		return
	}

	dir := s.jobs.LogDir()
	name, err := dir.Rotation(date, rotation)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.streamFile(w, r, name, path.Base(name))
}

// handleLogMerged merges every rotation for a date and streams the result
// without creating a job.
func (s *Server) handleLogMerged(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := jobs.ValidateDate(date); err != nil {
		respondError(w, r, err)
		return
	}

	dir := s.jobs.LogDir()
	sources, err := dir.Sources(date)
	if err != nil {
		respondError(w, r, err)
		return
	}

	setAttachment(w, dir.MergedName(date))
	w.WriteHeader(http.StatusOK)
	if err := dir.Merge(w, sources); err != nil {
		// Headers are gone; all that is left is to record it.
		logging.FromContext(r.Context()).Error("merged log stream failed",
			"date", date,
			"error", err,
		)
	}
}

// streamFile copies name from the log filesystem to the response.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, name, downloadName string) {
	f, err := s.jobs.LogDir().Open(name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	setAttachment(w, downloadName)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		logging.FromContext(r.Context()).Error("log file stream failed",
			"file", name,
			"error", err,
		)
	}
}

func setAttachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, errors.CodeInvalidInput, "invalid job id %q", raw)
	}
	return id, nil
}
