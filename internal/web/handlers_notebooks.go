package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmgilman/go/errors"

	"github.com/JonMunkholm/taska/internal/notebook"
)

// maxNotebookBody caps create/update request bodies (1MB).
const maxNotebookBody = 1 << 20

// handleListNotebooks lists notebooks, optionally filtered by task.
// Query params: taskId (optional)
func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseTaskIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.notebooks.List(r.Context(), taskID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleListNotebooksFull lists notebooks with their task and tags resolved.
// Query params: taskId (optional)
func (s *Server) handleListNotebooksFull(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseTaskIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	list, err := s.notebooks.ListFull(r.Context(), taskID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	id, err := parseNotebookID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	nb, err := s.notebooks.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (s *Server) handleCreateNotebook(w http.ResponseWriter, r *http.Request) {
	in, err := decodeNotebookInput(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	nb, err := s.notebooks.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

func (s *Server) handleUpdateNotebook(w http.ResponseWriter, r *http.Request) {
	id, err := parseNotebookID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	in, err := decodeNotebookInput(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	nb, err := s.notebooks.Update(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (s *Server) handleDeleteNotebook(w http.ResponseWriter, r *http.Request) {
	id, err := parseNotebookID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.notebooks.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeNotebookInput(w http.ResponseWriter, r *http.Request) (notebook.Input, error) {
	var in notebook.Input
	r.Body = http.MaxBytesReader(w, r.Body, maxNotebookBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return notebook.Input{}, errors.Wrap(err, errors.CodeInvalidInput, "invalid request body")
	}
	return in, nil
}

func parseNotebookID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInput("invalid notebook id %q", raw)
	}
	return id, nil
}

// parseTaskIDParam returns nil when taskId is absent.
func parseTaskIDParam(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("taskId")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidInput("invalid taskId %q", raw)
	}
	return &id, nil
}
