package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
	"castdeck/pkg/utils"

	"go.uber.org/zap"
)

type roomStore struct {
	roomRepo   ports.RoomRepository
	sourceRepo ports.SourceRepository
	logger     *zap.SugaredLogger
}

// NewRoomStore wraps the repositories behind the persistence adapter the
// session manager uses. All failures bubble up unwrapped enough for the
// caller to classify; none of them are retried here.
func NewRoomStore(
	roomRepo ports.RoomRepository,
	sourceRepo ports.SourceRepository,
	logger *zap.SugaredLogger,
) ports.RoomStore {
	return &roomStore{
		roomRepo:   roomRepo,
		sourceRepo: sourceRepo,
		logger:     logger,
	}
}

func (s *roomStore) EnsureRoom(ctx context.Context, id domain.RoomID, owner domain.UserID) (*domain.Room, error) {
	room, err := s.roomRepo.Get(ctx, id)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, fmt.Errorf("failed to look up room %s: %w", id, err)
	}

	room = &domain.Room{
		ID:        id,
		IsLive:    false,
		CreatedAt: time.Now(),
		OwnerID:   owner,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room %s: %w", id, err)
	}
	return room, nil
}

func (s *roomStore) ListSources(ctx context.Context, id domain.RoomID) ([]domain.Source, error) {
	sources, err := s.sourceRepo.ListByRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources for room %s: %w", id, err)
	}

	// Rows with an unknown kind are skipped rather than failing the load:
	// a newer writer may have persisted kinds this build does not know.
	out := sources[:0]
	for _, src := range sources {
		if !src.Kind.Valid() {
			s.logger.Warnw("skipping source with unknown kind",
				"source_id", src.ID,
				"kind", src.Kind,
			)
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

// UpsertSource assigns the canonical source id when missing, then persists.
// The id assignment happens before the write so the returned source always
// carries a usable id, even when persistence fails and the caller keeps
// going with local state only.
func (s *roomStore) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	if src.ID == "" {
		src.ID = domain.SourceID(utils.NewSourceID())
	}
	if err := s.sourceRepo.Upsert(ctx, src); err != nil {
		return src, fmt.Errorf("failed to persist source %s: %w", src.ID, err)
	}
	return src, nil
}

func (s *roomStore) DeleteSource(ctx context.Context, id domain.SourceID) error {
	if err := s.sourceRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	return nil
}

func (s *roomStore) SetRoomLive(ctx context.Context, id domain.RoomID, live bool) error {
	room, err := s.roomRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up room %s: %w", id, err)
	}
	if room.IsLive == live {
		return nil
	}
	room.IsLive = live
	if !live {
		room.Thumbnail = ""
	}
	if err := s.roomRepo.Update(ctx, room); err != nil {
		return fmt.Errorf("failed to update room %s live flag: %w", id, err)
	}
	return nil
}

func (s *roomStore) SetRoomThumbnail(ctx context.Context, id domain.RoomID, thumbnail string) error {
	room, err := s.roomRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up room %s: %w", id, err)
	}
	room.Thumbnail = thumbnail
	if err := s.roomRepo.Update(ctx, room); err != nil {
		return fmt.Errorf("failed to update room %s thumbnail: %w", id, err)
	}
	return nil
}

// RenameRoom migrates a room to a new id in three steps: ensure the new room
// exists, repoint the sources, delete the old room. The steps are not atomic;
// the partial-failure rules are:
//
//   - step 1 fails: nothing changed, return the error.
//   - step 2 fails: delete the new room again if this call created it, then
//     return the error. The old room stays authoritative.
//   - step 3 fails: log and return nil. Both rooms exist but the sources
//     already point at the new room, so the new id is authoritative; the old
//     room is an orphan that a later cleanup can remove.
func (s *roomStore) RenameRoom(ctx context.Context, oldID, newID domain.RoomID) error {
	if oldID == newID {
		return nil
	}

	oldRoom, err := s.roomRepo.Get(ctx, oldID)
	if err != nil {
		return fmt.Errorf("failed to look up room %s: %w", oldID, err)
	}

	createdByUs := false
	if _, err := s.roomRepo.Get(ctx, newID); err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			return fmt.Errorf("failed to look up room %s: %w", newID, err)
		}
		newRoom := &domain.Room{
			ID:        newID,
			IsLive:    oldRoom.IsLive,
			Thumbnail: oldRoom.Thumbnail,
			CreatedAt: time.Now(),
			OwnerID:   oldRoom.OwnerID,
		}
		if err := s.roomRepo.Create(ctx, newRoom); err != nil {
			return fmt.Errorf("failed to create room %s: %w", newID, err)
		}
		createdByUs = true
	}

	if err := s.sourceRepo.MoveRoom(ctx, oldID, newID); err != nil {
		if createdByUs {
			if delErr := s.roomRepo.Delete(ctx, newID); delErr != nil {
				s.logger.Warnw("failed to roll back new room after source migration failure",
					"room_id", newID,
					"error", delErr,
				)
			}
		}
		return fmt.Errorf("failed to move sources from %s to %s: %w", oldID, newID, err)
	}

	if err := s.roomRepo.Delete(ctx, oldID); err != nil {
		s.logger.Warnw("rename left the old room behind",
			"old_room_id", oldID,
			"new_room_id", newID,
			"error", err,
		)
	}
	return nil
}
