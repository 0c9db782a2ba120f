package web

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taska/internal/notebook"
)

// memRepo is an in-memory notebook.Repository.
type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	notebooks map[int64]notebook.Notebook
	listCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{notebooks: make(map[int64]notebook.Notebook)}
}

func (m *memRepo) sorted(keep func(notebook.Notebook) bool) []notebook.Notebook {
	out := make([]notebook.Notebook, 0, len(m.notebooks))
	for _, nb := range m.notebooks {
		if keep(nb) {
			out = append(out, nb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRepo) List(ctx context.Context) ([]notebook.Notebook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.sorted(func(notebook.Notebook) bool { return true }), nil
}

func (m *memRepo) ListByTask(ctx context.Context, taskID int64) ([]notebook.Notebook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(nb notebook.Notebook) bool {
		return nb.TaskID != nil && *nb.TaskID == taskID
	}), nil
}

func (m *memRepo) ListFull(ctx context.Context, taskID *int64) ([]notebook.Full, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notebook.Full
	for _, nb := range m.sorted(func(nb notebook.Notebook) bool {
		return taskID == nil || (nb.TaskID != nil && *nb.TaskID == *taskID)
	}) {
		full := notebook.Full{ID: nb.ID, Title: nb.Title, Content: nb.Content, Tags: []notebook.Tag{}}
		if nb.TaskID != nil {
			full.Task = &notebook.TaskRef{ID: *nb.TaskID, Title: fmt.Sprintf("task %d", *nb.TaskID)}
		}
		for _, tagID := range nb.TagIDs {
			full.Tags = append(full.Tags, notebook.Tag{ID: tagID, Name: fmt.Sprintf("tag %d", tagID)})
		}
		out = append(out, full)
	}
	return out, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (notebook.Notebook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nb, ok := m.notebooks[id]
	if !ok {
		return notebook.Notebook{}, errors.Newf(errors.CodeNotFound, "notebook not found: %d", id)
	}
	return nb, nil
}

func (m *memRepo) Create(ctx context.Context, in notebook.Input) (notebook.Notebook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	nb := notebook.Notebook{ID: m.nextID, Title: in.Title, Content: in.Content, TaskID: in.TaskID, TagIDs: in.TagIDs}
	m.notebooks[nb.ID] = nb
	return nb, nil
}

func (m *memRepo) Update(ctx context.Context, id int64, in notebook.Input) (notebook.Notebook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notebooks[id]; !ok {
		return notebook.Notebook{}, errors.Newf(errors.CodeNotFound, "notebook not found: %d", id)
	}
	nb := notebook.Notebook{ID: id, Title: in.Title, Content: in.Content, TaskID: in.TaskID, TagIDs: in.TagIDs}
	m.notebooks[id] = nb
	return nb, nil
}

func (m *memRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notebooks[id]; !ok {
		return errors.Newf(errors.CodeNotFound, "notebook not found: %d", id)
	}
	delete(m.notebooks, id)
	return nil
}

func (m *memRepo) lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func TestNotebooks_CRUD(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "/api/notebooks", `{"title":"Sprint notes","content":"ship it","taskId":7,"tagIds":[1,2]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[notebook.Notebook](t, rec)
	require.NotZero(t, created.ID)
	path := fmt.Sprintf("/api/notebooks/%d", created.ID)

	rec = f.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[notebook.Notebook](t, rec))

	rec = f.do(t, http.MethodPut, path, `{"title":"Sprint notes v2","content":"shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Sprint notes v2", decode[notebook.Notebook](t, rec).Title)

	rec = f.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = f.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotebooks_ListIsCachedUntilWrite(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(t, http.MethodPost, "/api/notebooks", `{"title":"First","content":"one"}`)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodGet, "/api/notebooks", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]notebook.Notebook](t, rec), 1)
	}
	assert.Equal(t, 1, f.repo.lists(), "repeated unfiltered lists should hit the cache")

	f.do(t, http.MethodPost, "/api/notebooks", `{"title":"Second","content":"two"}`)

	rec := f.do(t, http.MethodGet, "/api/notebooks", "")
	assert.Len(t, decode[[]notebook.Notebook](t, rec), 2)
	assert.Equal(t, 2, f.repo.lists())
}

func TestNotebooks_FilterByTask(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(t, http.MethodPost, "/api/notebooks", `{"title":"On task","content":"x","taskId":3,"tagIds":[9]}`)
	f.do(t, http.MethodPost, "/api/notebooks", `{"title":"Loose","content":"y"}`)

	rec := f.do(t, http.MethodGet, "/api/notebooks?taskId=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]notebook.Notebook](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "On task", got[0].Title)

	rec = f.do(t, http.MethodGet, "/api/notebooks/full", "")
	require.Equal(t, http.StatusOK, rec.Code)
	full := decode[[]notebook.Full](t, rec)
	require.Len(t, full, 2)
	require.NotNil(t, full[0].Task)
	assert.Equal(t, int64(3), full[0].Task.ID)
	assert.Equal(t, []notebook.Tag{{ID: 9, Name: "tag 9"}}, full[0].Tags)
	assert.Nil(t, full[1].Task)

	rec = f.do(t, http.MethodGet, "/api/notebooks/full?taskId=3", "")
	assert.Len(t, decode[[]notebook.Full](t, rec), 1)
}

func TestNotebooks_BadRequests(t *testing.T) {
	f := newFixture(t, nil, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"non-numeric task filter", http.MethodGet, "/api/notebooks?taskId=abc", ""},
		{"non-numeric id", http.MethodGet, "/api/notebooks/abc", ""},
		{"zero id", http.MethodDelete, "/api/notebooks/0", ""},
		{"malformed body", http.MethodPost, "/api/notebooks", `{"title":`},
		{"unknown field", http.MethodPost, "/api/notebooks", `{"title":"Valid","content":"x","owner":1}`},
		{"short title", http.MethodPost, "/api/notebooks", `{"title":"ab","content":"x"}`},
		{"empty content", http.MethodPut, "/api/notebooks/1", `{"title":"Valid title","content":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
		})
	}
}
