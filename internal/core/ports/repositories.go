package ports

import (
	"context"

	"castdeck/internal/core/domain"
)

type RoomRepository interface {
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Create(ctx context.Context, room *domain.Room) error
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id domain.RoomID) error
	ListLive(ctx context.Context) ([]*domain.Room, error)
	// Subscribe delivers room change events until ctx is cancelled. The
	// returned channel is closed when the subscription ends.
	Subscribe(ctx context.Context) (<-chan domain.RoomEvent, error)
}

type SourceRepository interface {
	Upsert(ctx context.Context, src domain.Source) error
	Get(ctx context.Context, id domain.SourceID) (*domain.Source, error)
	Delete(ctx context.Context, id domain.SourceID) error
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Source, error)
	// MoveRoom repoints every source of oldRoom at newRoom. Used by the
	// room rename migration.
	MoveRoom(ctx context.Context, oldRoom, newRoom domain.RoomID) error
}
