package notebook

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/taska/internal/cache"
	"github.com/JonMunkholm/taska/internal/logging"
)

// Cache slot names for the memoized list queries.
const (
	SlotAll     = "all"
	SlotAllFull = "all_full"
)

// Service handles notebook operations. Unfiltered list results are cached
// and every write invalidates both list slots.
type Service struct {
	repo Repository
	list *cache.Slots[[]Notebook]
	full *cache.Slots[[]Full]
}

// NewService creates a notebook service whose cache slots hold up to
// capacity entries each.
func NewService(repo Repository, capacity int) *Service {
	return &Service{
		repo: repo,
		list: cache.NewSlots[[]Notebook](capacity, SlotAll),
		full: cache.NewSlots[[]Full](capacity, SlotAllFull),
	}
}

// List returns all notebooks, or only those of taskID when it is non-nil.
// Filtered queries bypass the cache.
func (s *Service) List(ctx context.Context, taskID *int64) ([]Notebook, error) {
	if taskID != nil {
		return s.repo.ListByTask(ctx, *taskID)
	}

	if nbs, ok := s.list.Get(SlotAll); ok {
		logging.FromContext(ctx).Debug("notebook list served from cache")
		return nbs, nil
	}

	gen := s.list.Generation(SlotAll)
	nbs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.list.PutIfCurrent(SlotAll, gen, nbs)
	return nbs, nil
}

// ListFull returns notebooks with their task and tags resolved, optionally
// filtered by taskID. Only the unfiltered result is cached.
func (s *Service) ListFull(ctx context.Context, taskID *int64) ([]Full, error) {
	if taskID != nil {
		return s.repo.ListFull(ctx, taskID)
	}

	if nbs, ok := s.full.Get(SlotAllFull); ok {
		logging.FromContext(ctx).Debug("full notebook list served from cache")
		return nbs, nil
	}

	gen := s.full.Generation(SlotAllFull)
	nbs, err := s.repo.ListFull(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.full.PutIfCurrent(SlotAllFull, gen, nbs)
	return nbs, nil
}

// Get returns one notebook.
func (s *Service) Get(ctx context.Context, id int64) (Notebook, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a notebook.
func (s *Service) Create(ctx context.Context, in Input) (Notebook, error) {
	if err := in.Validate(); err != nil {
		return Notebook{}, err
	}
	nb, err := s.repo.Create(ctx, in)
	if err != nil {
		return Notebook{}, err
	}
	s.invalidate(ctx)
	return nb, nil
}

// Update validates and replaces a notebook's title, content and tags.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Notebook, error) {
	if err := in.Validate(); err != nil {
		return Notebook{}, err
	}
	nb, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Notebook{}, err
	}
	s.invalidate(ctx)
	return nb, nil
}

// Delete removes a notebook.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	logging.FromContext(ctx).Debug("invalidating notebook cache", slog.Any("slots", []string{SlotAll, SlotAllFull}))
	for _, slots := range []invalidator{s.list, s.full} {
		slots.InvalidateAll(SlotAll, SlotAllFull)
	}
}

// invalidator is the write-side view shared by the typed slot sets.
type invalidator interface {
	InvalidateAll(names ...string)
}
