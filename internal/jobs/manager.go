package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JonMunkholm/taska/internal/logging"
)

// Manager accepts artifact requests and hands them to the pool.
type Manager struct {
	store  *Store
	worker *Worker
	pool   *Pool
}

// NewManager wires a registry, a worker and a pool together.
func NewManager(store *Store, worker *Worker, pool *Pool) *Manager {
	return &Manager{store: store, worker: worker, pool: pool}
}

// Submit registers a new IN_PROGRESS job for date and queues it. The
// returned id is visible to StatusOf before Submit returns. The request id
// carried by ctx is attached to every log line the job writes.
func (m *Manager) Submit(ctx context.Context, date string) (uuid.UUID, error) {
	if err := ValidateDate(date); err != nil {
		return uuid.Nil, err
	}

	id := m.store.Create()
	logger := logging.WithFields(ctx, "job_id", id.String(), "date", date)

	err := m.pool.Submit(func(taskCtx context.Context) {
		m.worker.Run(taskCtx, logger, id, date)
	})
	if err != nil {
		// The id never left Submit, so the record is dropped rather than failed.
		m.store.discard(id)
		logger.Error("artifact job rejected", "error", err)
		return uuid.Nil, err
	}

	logger.Info("artifact job submitted")
	return id, nil
}

// StatusOf reports the state of id. Unknown ids yield NOT_FOUND.
func (m *Manager) StatusOf(id uuid.UUID) StatusView {
	rec := m.store.Get(id)
	return StatusView{Status: rec.Status, ErrorMessage: rec.Error}
}

// ArtifactOf returns the artifact of a COMPLETED job.
func (m *Manager) ArtifactOf(id uuid.UUID) (Artifact, bool) {
	rec := m.store.Get(id)
	if rec.Status != StatusCompleted {
		return Artifact{}, false
	}
	return Artifact{ID: id, Path: rec.ArtifactPath}, true
}

// Stats is a snapshot of registry and pool state.
type Stats struct {
	Pool     PoolStatus     `json:"pool"`
	Jobs     map[Status]int `json:"jobs"`
	Registry int            `json:"registry"`
}

// Stats returns current counts for monitoring.
func (m *Manager) Stats() Stats {
	return Stats{
		Pool:     m.pool.Status(),
		Jobs:     m.store.Counts(),
		Registry: m.store.Len(),
	}
}

// LogDir exposes the directory the worker reads from.
func (m *Manager) LogDir() *LogDir { return m.worker.dir }
