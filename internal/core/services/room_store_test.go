package services

import (
	"context"
	"testing"

	"castdeck/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRoomRepository) ListLive(ctx context.Context) ([]*domain.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Room), args.Error(1)
}

func (m *MockRoomRepository) Subscribe(ctx context.Context) (<-chan domain.RoomEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan domain.RoomEvent), args.Error(1)
}

type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) Upsert(ctx context.Context, src domain.Source) error {
	args := m.Called(ctx, src)
	return args.Error(0)
}

func (m *MockSourceRepository) Get(ctx context.Context, id domain.SourceID) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceRepository) Delete(ctx context.Context, id domain.SourceID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSourceRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Source, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Source), args.Error(1)
}

func (m *MockSourceRepository) MoveRoom(ctx context.Context, oldRoom, newRoom domain.RoomID) error {
	args := m.Called(ctx, oldRoom, newRoom)
	return args.Error(0)
}

func newTestRoomStore(t *testing.T) (*MockRoomRepository, *MockSourceRepository, *roomStore) {
	roomRepo := new(MockRoomRepository)
	sourceRepo := new(MockSourceRepository)
	store := NewRoomStore(roomRepo, sourceRepo, zaptest.NewLogger(t).Sugar()).(*roomStore)
	return roomRepo, sourceRepo, store
}

func TestRoomStore_EnsureRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("returns existing room without creating", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)
		existing := &domain.Room{ID: "my-room", IsLive: true}
		roomRepo.On("Get", ctx, domain.RoomID("my-room")).Return(existing, nil)

		room, err := store.EnsureRoom(ctx, "my-room", "")

		assert.NoError(t, err)
		assert.Equal(t, existing, room)
		roomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("creates missing room with owner", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("my-room")).Return(nil, domain.ErrRoomNotFound)
		roomRepo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(nil)

		room, err := store.EnsureRoom(ctx, "my-room", "user-1")

		assert.NoError(t, err)
		assert.Equal(t, domain.RoomID("my-room"), room.ID)
		assert.Equal(t, domain.UserID("user-1"), room.OwnerID)
		assert.False(t, room.IsLive)
		assert.False(t, room.CreatedAt.IsZero())
		roomRepo.AssertExpectations(t)
	})

	t.Run("propagates lookup failure", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("my-room")).Return(nil, assert.AnError)

		room, err := store.EnsureRoom(ctx, "my-room", "")

		assert.Error(t, err)
		assert.Nil(t, room)
	})
}

func TestRoomStore_ListSources(t *testing.T) {
	ctx := context.Background()

	t.Run("filters rows with unknown kinds", func(t *testing.T) {
		_, sourceRepo, store := newTestRoomStore(t)
		sourceRepo.On("ListByRoom", ctx, domain.RoomID("room")).Return([]domain.Source{
			{ID: "src_1", RoomID: "room", Kind: domain.KindScreen, Label: "Screen"},
			{ID: "src_2", RoomID: "room", Kind: "hologram", Label: "???"},
			{ID: "src_3", RoomID: "room", Kind: domain.KindMicrophone, Label: "Microphone"},
		}, nil)

		sources, err := store.ListSources(ctx, "room")

		assert.NoError(t, err)
		assert.Len(t, sources, 2)
		assert.Equal(t, domain.SourceID("src_1"), sources[0].ID)
		assert.Equal(t, domain.SourceID("src_3"), sources[1].ID)
	})
}

func TestRoomStore_UpsertSource(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id when missing", func(t *testing.T) {
		_, sourceRepo, store := newTestRoomStore(t)
		sourceRepo.On("Upsert", ctx, mock.AnythingOfType("domain.Source")).Return(nil)

		src, err := store.UpsertSource(ctx, domain.Source{
			RoomID: "room",
			Label:  "Screen",
			Kind:   domain.KindScreen,
		})

		assert.NoError(t, err)
		assert.NotEmpty(t, src.ID)
	})

	t.Run("keeps existing id", func(t *testing.T) {
		_, sourceRepo, store := newTestRoomStore(t)
		sourceRepo.On("Upsert", ctx, mock.AnythingOfType("domain.Source")).Return(nil)

		src, err := store.UpsertSource(ctx, domain.Source{
			ID:     "src_keep",
			RoomID: "room",
			Label:  "Camera",
			Kind:   domain.KindCamera,
		})

		assert.NoError(t, err)
		assert.Equal(t, domain.SourceID("src_keep"), src.ID)
	})

	t.Run("id survives persistence failure", func(t *testing.T) {
		_, sourceRepo, store := newTestRoomStore(t)
		sourceRepo.On("Upsert", ctx, mock.AnythingOfType("domain.Source")).Return(assert.AnError)

		src, err := store.UpsertSource(ctx, domain.Source{
			RoomID: "room",
			Label:  "Screen",
			Kind:   domain.KindScreen,
		})

		assert.Error(t, err)
		assert.NotEmpty(t, src.ID)
	})
}

func TestRoomStore_DeleteSource(t *testing.T) {
	ctx := context.Background()

	t.Run("missing source is not an error", func(t *testing.T) {
		_, sourceRepo, store := newTestRoomStore(t)
		sourceRepo.On("Delete", ctx, domain.SourceID("src_gone")).Return(domain.ErrSourceNotFound)

		assert.NoError(t, store.DeleteSource(ctx, "src_gone"))
	})
}

func TestRoomStore_SetRoomLive(t *testing.T) {
	ctx := context.Background()

	t.Run("going offline clears the thumbnail", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("room")).Return(&domain.Room{
			ID:        "room",
			IsLive:    true,
			Thumbnail: "data:image/jpeg;base64,xxxx",
		}, nil)
		roomRepo.On("Update", ctx, mock.MatchedBy(func(r *domain.Room) bool {
			return !r.IsLive && r.Thumbnail == ""
		})).Return(nil)

		assert.NoError(t, store.SetRoomLive(ctx, "room", false))
		roomRepo.AssertExpectations(t)
	})

	t.Run("no-op when flag unchanged", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("room")).Return(&domain.Room{ID: "room", IsLive: true}, nil)

		assert.NoError(t, store.SetRoomLive(ctx, "room", true))
		roomRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRoomStore_RenameRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("full migration", func(t *testing.T) {
		roomRepo, sourceRepo, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("old")).Return(&domain.Room{ID: "old", IsLive: true}, nil)
		roomRepo.On("Get", ctx, domain.RoomID("new")).Return(nil, domain.ErrRoomNotFound)
		roomRepo.On("Create", ctx, mock.MatchedBy(func(r *domain.Room) bool {
			return r.ID == "new" && r.IsLive
		})).Return(nil)
		sourceRepo.On("MoveRoom", ctx, domain.RoomID("old"), domain.RoomID("new")).Return(nil)
		roomRepo.On("Delete", ctx, domain.RoomID("old")).Return(nil)

		assert.NoError(t, store.RenameRoom(ctx, "old", "new"))
		roomRepo.AssertExpectations(t)
		sourceRepo.AssertExpectations(t)
	})

	t.Run("same id is a no-op", func(t *testing.T) {
		roomRepo, _, store := newTestRoomStore(t)

		assert.NoError(t, store.RenameRoom(ctx, "room", "room"))
		roomRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("source migration failure rolls back a room we created", func(t *testing.T) {
		roomRepo, sourceRepo, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("old")).Return(&domain.Room{ID: "old"}, nil)
		roomRepo.On("Get", ctx, domain.RoomID("new")).Return(nil, domain.ErrRoomNotFound)
		roomRepo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(nil)
		sourceRepo.On("MoveRoom", ctx, domain.RoomID("old"), domain.RoomID("new")).Return(assert.AnError)
		roomRepo.On("Delete", ctx, domain.RoomID("new")).Return(nil)

		err := store.RenameRoom(ctx, "old", "new")

		assert.Error(t, err)
		roomRepo.AssertCalled(t, "Delete", ctx, domain.RoomID("new"))
		roomRepo.AssertNotCalled(t, "Delete", ctx, domain.RoomID("old"))
	})

	t.Run("source migration failure keeps a pre-existing new room", func(t *testing.T) {
		roomRepo, sourceRepo, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("old")).Return(&domain.Room{ID: "old"}, nil)
		roomRepo.On("Get", ctx, domain.RoomID("new")).Return(&domain.Room{ID: "new"}, nil)
		sourceRepo.On("MoveRoom", ctx, domain.RoomID("old"), domain.RoomID("new")).Return(assert.AnError)

		err := store.RenameRoom(ctx, "old", "new")

		assert.Error(t, err)
		roomRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("old room delete failure is swallowed", func(t *testing.T) {
		roomRepo, sourceRepo, store := newTestRoomStore(t)
		roomRepo.On("Get", ctx, domain.RoomID("old")).Return(&domain.Room{ID: "old"}, nil)
		roomRepo.On("Get", ctx, domain.RoomID("new")).Return(nil, domain.ErrRoomNotFound)
		roomRepo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(nil)
		sourceRepo.On("MoveRoom", ctx, domain.RoomID("old"), domain.RoomID("new")).Return(nil)
		roomRepo.On("Delete", ctx, domain.RoomID("old")).Return(assert.AnError)

		// Sources already point at the new room, so the rename is done.
		assert.NoError(t, store.RenameRoom(ctx, "old", "new"))
	})
}
