package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
)

type MemorySourceRepository struct {
	sources map[domain.SourceID]domain.Source
	mu      sync.RWMutex
}

func NewMemorySourceRepository() ports.SourceRepository {
	return &MemorySourceRepository{
		sources: make(map[domain.SourceID]domain.Source),
	}
}

func (r *MemorySourceRepository) Upsert(ctx context.Context, src domain.Source) error {
	if !src.Kind.Valid() {
		return fmt.Errorf("invalid source kind %q", src.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[src.ID] = src
	return nil
}

func (r *MemorySourceRepository) Get(ctx context.Context, id domain.SourceID) (*domain.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, exists := r.sources[id]
	if !exists {
		return nil, domain.ErrSourceNotFound
	}
	return &src, nil
}

func (r *MemorySourceRepository) Delete(ctx context.Context, id domain.SourceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[id]; !exists {
		return domain.ErrSourceNotFound
	}
	delete(r.sources, id)
	return nil
}

func (r *MemorySourceRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Source
	for _, src := range r.sources {
		if src.RoomID == roomID {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemorySourceRepository) MoveRoom(ctx context.Context, oldRoom, newRoom domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, src := range r.sources {
		if src.RoomID == oldRoom {
			src.RoomID = newRoom
			r.sources[id] = src
		}
	}
	return nil
}
