package memory

import (
	"context"
	"sort"
	"sync"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
)

// MemoryRoomRepository is the local fallback store used when the external
// backend is disabled. State lives for the process lifetime only.
type MemoryRoomRepository struct {
	rooms map[domain.RoomID]*domain.Room
	subs  map[chan domain.RoomEvent]struct{}
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]*domain.Room),
		subs:  make(map[chan domain.RoomEvent]struct{}),
	}
}

func (r *MemoryRoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	if _, exists := r.rooms[room.ID]; exists {
		r.mu.Unlock()
		return nil // idempotent create
	}
	copied := *room
	r.rooms[room.ID] = &copied
	r.mu.Unlock()

	r.publish(domain.RoomEvent{Type: domain.RoomCreated, Room: *room})
	return nil
}

func (r *MemoryRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	if _, exists := r.rooms[room.ID]; !exists {
		r.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	copied := *room
	r.rooms[room.ID] = &copied
	r.mu.Unlock()

	r.publish(domain.RoomEvent{Type: domain.RoomUpdated, Room: *room})
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	room, exists := r.rooms[id]
	if !exists {
		r.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	deleted := *room
	delete(r.rooms, id)
	r.mu.Unlock()

	r.publish(domain.RoomEvent{Type: domain.RoomDeleted, Room: deleted})
	return nil
}

func (r *MemoryRoomRepository) ListLive(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []*domain.Room
	for _, room := range r.rooms {
		if room.IsLive {
			copied := *room
			live = append(live, &copied)
		}
	}
	// Newest first, matching the live-rooms listing order.
	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	return live, nil
}

func (r *MemoryRoomRepository) Subscribe(ctx context.Context) (<-chan domain.RoomEvent, error) {
	ch := make(chan domain.RoomEvent, 16)

	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, ch)
		r.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (r *MemoryRoomRepository) publish(ev domain.RoomEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block mutations
		}
	}
}
