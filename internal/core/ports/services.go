package ports

import (
	"context"

	"castdeck/internal/core/domain"
)

// RoomStore is the persistence adapter the session manager talks to. Every
// operation is fallible and every failure is non-fatal to the session: the
// caller logs it, keeps local state authoritative and retries lazily on the
// next mutating action.
type RoomStore interface {
	EnsureRoom(ctx context.Context, id domain.RoomID, owner domain.UserID) (*domain.Room, error)
	ListSources(ctx context.Context, id domain.RoomID) ([]domain.Source, error)
	// UpsertSource assigns the canonical id when src.ID is empty and
	// returns the source as persisted. The id is assigned even when the
	// write itself fails, so local state never carries an id-less source.
	UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error)
	DeleteSource(ctx context.Context, id domain.SourceID) error
	SetRoomLive(ctx context.Context, id domain.RoomID, live bool) error
	SetRoomThumbnail(ctx context.Context, id domain.RoomID, thumbnail string) error
	// RenameRoom runs the three-step migration: ensure new room, repoint
	// sources, delete old room. See the implementation for the partial
	// failure rules.
	RenameRoom(ctx context.Context, oldID, newID domain.RoomID) error
}

// CaptureBinding wraps the platform capture facility behind one acquire
// operation. Failures are classified into the domain capture errors and are
// never fatal to the broader session.
type CaptureBinding interface {
	Acquire(ctx context.Context, kind domain.SourceKind, deviceID string, hint domain.CaptureHint) (*domain.MediaStream, error)
}

// FeedProvider returns the currently active sources with their live streams.
// The transport session calls it whenever a receiver connects.
type FeedProvider func() []domain.Feed

// Transport is the peer-to-peer layer: one signaling identity per broadcast
// session, accept-all inbound receivers, one independently labeled media
// call per active source per receiver.
type Transport interface {
	// Start registers roomID as the signaling identity and moves the
	// session to Live. A room id collision is reported as
	// domain.ErrIdentityTaken. onDown is invoked once if the transport
	// later fails unrecoverably.
	Start(ctx context.Context, roomID domain.RoomID, feeds FeedProvider, onDown func(error)) error
	// PushSource pushes (or replaces) one source's stream on every
	// connected receiver.
	PushSource(ctx context.Context, feed domain.Feed) error
	// RetractSource closes the source's calls on every connected receiver.
	RetractSource(ctx context.Context, id domain.SourceID) error
	ReceiverCount() int
	State() domain.TransportState
	Stop(ctx context.Context) error
}

// Metrics is the observability hook implemented by the prometheus collector.
type Metrics interface {
	ReceiverConnected()
	ReceiverDisconnected()
	SourceActivated(kind domain.SourceKind)
	SourceDeactivated(kind domain.SourceKind)
	CaptureFailure(kind domain.SourceKind)
	CallPushed()
	RoomLive(live bool)
}
