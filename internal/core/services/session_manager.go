package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
	"castdeck/pkg/utils"
	"castdeck/pkg/validation"

	"go.uber.org/zap"
)

// SessionConfig carries the per-session tuning knobs.
type SessionConfig struct {
	// Capture hints per kind. Screen capture typically wants the full frame
	// rate; cameras are happier at a lower one.
	ScreenHint domain.CaptureHint
	CameraHint domain.CaptureHint

	// Thumbnail schedule while broadcasting.
	ThumbnailSettleDelay time.Duration
	ThumbnailInterval    time.Duration

	// Budget for the fire-and-forget final snapshot.
	SnapshotTimeout time.Duration
}

// sourceState is the in-memory record for one source. The persisted Source
// is the durable part; Phase and Stream exist only for the session lifetime.
type sourceState struct {
	source domain.Source
	phase  domain.SourcePhase
	stream *domain.MediaStream
}

// SourceView is the read-only projection handed to callers.
type SourceView struct {
	domain.Source
	Phase domain.SourcePhase `json:"phase"`
}

// SessionManager owns the authoritative source list for one room and
// orchestrates capture, persistence and transport around it. Local state is
// the source of truth; the store is a best-effort mirror that is read back
// only at load time.
//
// All exported methods are safe for concurrent use. Capture, persistence and
// transport calls happen outside the lock; per-source generation counters
// keep activation sequential per source while independent across sources.
type SessionManager struct {
	roomID domain.RoomID
	owner  domain.UserID

	store     ports.RoomStore
	capture   ports.CaptureBinding
	transport ports.Transport
	metrics   ports.Metrics
	logger    *zap.SugaredLogger
	cfg       SessionConfig

	// notice delivers short-lived user-visible messages. Optional.
	notice func(msg string)

	mu           sync.Mutex
	sources      map[domain.SourceID]*sourceState
	order        []domain.SourceID
	gen          map[domain.SourceID]uint64
	broadcasting bool
	closed       bool
	thumbCancel  context.CancelFunc
}

// NewSessionManager builds a manager for one room. metrics and notice may be
// nil. owner is empty when no user is logged in.
func NewSessionManager(
	roomID domain.RoomID,
	owner domain.UserID,
	store ports.RoomStore,
	capture ports.CaptureBinding,
	transport ports.Transport,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
	cfg SessionConfig,
	notice func(msg string),
) (*SessionManager, error) {
	if err := validation.RoomID(string(roomID)); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if notice == nil {
		notice = func(string) {}
	}
	return &SessionManager{
		roomID:    roomID,
		owner:     owner,
		store:     store,
		capture:   capture,
		transport: transport,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		notice:    notice,
		sources:   make(map[domain.SourceID]*sourceState),
		gen:       make(map[domain.SourceID]uint64),
	}, nil
}

func (m *SessionManager) RoomID() domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

func (m *SessionManager) Broadcasting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcasting
}

func (m *SessionManager) ReceiverCount() int {
	return m.transport.ReceiverCount()
}

// Sources returns the current source list in addition order.
func (m *SessionManager) Sources() []SourceView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SourceView, 0, len(m.order))
	for _, id := range m.order {
		st := m.sources[id]
		out = append(out, SourceView{Source: st.source, Phase: st.phase})
	}
	return out
}

// LoadRoom ensures the room exists, loads its persisted sources and attempts
// to resume the enabled ones. Screen capture is never auto-resumed: the
// platform requires a fresh user gesture per session, so enabled screen
// sources come back inactive with their intent flag intact. Persistence
// failures are logged and the session continues with whatever loaded.
func (m *SessionManager) LoadRoom(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrSessionClosed
	}
	roomID := m.roomID
	owner := m.owner
	m.mu.Unlock()

	if _, err := m.store.EnsureRoom(ctx, roomID, owner); err != nil {
		m.logger.Warnw("failed to ensure room, continuing with local state",
			"room_id", roomID,
			"error", err,
		)
	}

	persisted, err := m.store.ListSources(ctx, roomID)
	if err != nil {
		m.logger.Warnw("failed to load sources, starting empty",
			"room_id", roomID,
			"error", err,
		)
		persisted = nil
	}

	var resume []domain.SourceID
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrSessionClosed
	}
	for _, src := range persisted {
		if _, exists := m.sources[src.ID]; exists {
			continue
		}
		m.sources[src.ID] = &sourceState{source: src, phase: domain.PhaseInactive}
		m.order = append(m.order, src.ID)
		if src.Enabled && src.Kind != domain.KindScreen {
			resume = append(resume, src.ID)
		}
	}
	m.mu.Unlock()

	m.logger.Infow("room loaded",
		"room_id", roomID,
		"sources", len(persisted),
		"resuming", len(resume),
	)

	for _, id := range resume {
		if err := m.ActivateSource(ctx, id); err != nil {
			m.logger.Warnw("failed to resume source",
				"source_id", id,
				"error", err,
			)
		}
	}
	return nil
}

// AddSource creates a new source of the given kind, persists it with
// Enabled=true and attempts activation. Activation failure leaves the source
// present but inactive; it is never rolled back.
func (m *SessionManager) AddSource(ctx context.Context, kind domain.SourceKind, deviceID string) (SourceView, error) {
	if !kind.Valid() {
		return SourceView{}, fmt.Errorf("invalid source kind %q", kind)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return SourceView{}, domain.ErrSessionClosed
	}
	taken := make(map[string]bool, len(m.sources))
	for _, st := range m.sources {
		taken[st.source.Label] = true
	}
	roomID := m.roomID
	m.mu.Unlock()

	src := domain.Source{
		RoomID:   roomID,
		Label:    utils.UniqueLabel(kind.DefaultLabel(), taken),
		Kind:     kind,
		DeviceID: deviceID,
		Enabled:  true,
	}

	// The adapter assigns the canonical id even when the write fails, so
	// the local record is usable either way.
	persisted, err := m.store.UpsertSource(ctx, src)
	if err != nil {
		m.logger.Warnw("failed to persist new source, keeping local",
			"source_id", persisted.ID,
			"error", err,
		)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return SourceView{}, domain.ErrSessionClosed
	}
	// Re-derive the taken set: a concurrent add or rename may have claimed
	// the label while the persist call was in flight.
	taken = make(map[string]bool, len(m.sources))
	for _, st := range m.sources {
		taken[st.source.Label] = true
	}
	relabeled := false
	if taken[persisted.Label] {
		persisted.Label = utils.UniqueLabel(persisted.Label, taken)
		relabeled = true
	}
	m.sources[persisted.ID] = &sourceState{source: persisted, phase: domain.PhaseInactive}
	m.order = append(m.order, persisted.ID)
	m.mu.Unlock()

	if relabeled {
		if _, err := m.store.UpsertSource(ctx, persisted); err != nil {
			m.logger.Warnw("failed to persist corrected label",
				"source_id", persisted.ID,
				"error", err,
			)
		}
	}

	if err := m.ActivateSource(ctx, persisted.ID); err != nil {
		m.notice(fmt.Sprintf("%s added but not active: %v", persisted.Label, err))
	}

	m.mu.Lock()
	view := SourceView{Source: persisted, Phase: domain.PhaseInactive}
	if st, ok := m.sources[persisted.ID]; ok {
		view = SourceView{Source: st.source, Phase: st.phase}
	}
	m.mu.Unlock()
	return view, nil
}

// ActivateSource acquires a fresh stream for the source. An unknown id is a
// no-op. Any previously held stream is stopped first, so one source id never
// has two live streams. On success the enabled flag is persisted; while
// broadcasting, the stream is pushed to already-connected receivers.
func (m *SessionManager) ActivateSource(ctx context.Context, id domain.SourceID) error {
	m.mu.Lock()
	st, exists := m.sources[id]
	if !exists || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.gen[id]++
	gen := m.gen[id]
	old := st.stream
	st.stream = nil
	st.phase = domain.PhaseActivating
	src := st.source
	m.mu.Unlock()

	if old != nil {
		// The replaced stream was counted active; balance the gauge before
		// the new activation counts itself.
		old.Stop()
		m.metrics.SourceDeactivated(src.Kind)
	}

	stream, err := m.capture.Acquire(ctx, src.Kind, src.DeviceID, m.hintFor(src.Kind))
	if err != nil {
		m.mu.Lock()
		if m.gen[id] == gen && !m.closed {
			if cur, ok := m.sources[id]; ok {
				cur.phase = domain.PhaseInactive
			}
		}
		m.mu.Unlock()

		m.metrics.CaptureFailure(src.Kind)
		if domain.IsCaptureError(err) {
			m.notice(fmt.Sprintf("could not activate %s: %v", src.Label, err))
			return err
		}
		return fmt.Errorf("failed to acquire %s stream: %w", src.Kind, err)
	}

	m.mu.Lock()
	cur, ok := m.sources[id]
	if !ok || m.closed || m.gen[id] != gen {
		// The source was removed, the session closed, or a newer
		// activation superseded this one while capture was pending.
		m.mu.Unlock()
		stream.Stop()
		return domain.ErrSessionClosed
	}
	cur.stream = stream
	cur.phase = domain.PhaseActive
	cur.source.Enabled = true
	src = cur.source
	pushing := m.broadcasting
	m.mu.Unlock()

	m.metrics.SourceActivated(src.Kind)
	m.logger.Infow("source activated",
		"source_id", id,
		"kind", src.Kind,
		"label", src.Label,
	)

	if _, err := m.store.UpsertSource(ctx, src); err != nil {
		m.logger.Warnw("failed to persist enabled flag", "source_id", id, "error", err)
	}

	if pushing {
		if err := m.transport.PushSource(ctx, domain.Feed{Source: src, Stream: stream}); err != nil {
			m.logger.Warnw("failed to push source to connected receivers",
				"source_id", id,
				"error", err,
			)
		}
	}
	return nil
}

// DeactivateSource stops the source's stream and persists Enabled=false.
// While broadcasting, the source's calls are retracted from receivers.
func (m *SessionManager) DeactivateSource(ctx context.Context, id domain.SourceID) error {
	m.mu.Lock()
	st, exists := m.sources[id]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	m.gen[id]++
	stream := st.stream
	st.stream = nil
	st.phase = domain.PhaseInactive
	st.source.Enabled = false
	src := st.source
	retracting := m.broadcasting
	m.mu.Unlock()

	if stream != nil {
		stream.Stop()
		m.metrics.SourceDeactivated(src.Kind)
	}

	if retracting {
		if err := m.transport.RetractSource(ctx, id); err != nil {
			m.logger.Warnw("failed to retract source from receivers",
				"source_id", id,
				"error", err,
			)
		}
	}

	if _, err := m.store.UpsertSource(ctx, src); err != nil {
		m.logger.Warnw("failed to persist disabled flag", "source_id", id, "error", err)
	}
	return nil
}

// RenameSource changes the source's label. The new label must be unique
// within the room; on conflict both labels are left unchanged. Receivers are
// unaffected: routing is by id, labels are display keys only.
func (m *SessionManager) RenameSource(ctx context.Context, id domain.SourceID, newLabel string) error {
	if err := validation.SourceLabel(newLabel); err != nil {
		return err
	}

	m.mu.Lock()
	st, exists := m.sources[id]
	if !exists {
		m.mu.Unlock()
		return domain.ErrSourceNotFound
	}
	for otherID, other := range m.sources {
		if otherID != id && other.source.Label == newLabel {
			m.mu.Unlock()
			return domain.ErrDuplicateLabel
		}
	}
	st.source.Label = newLabel
	src := st.source
	m.mu.Unlock()

	if _, err := m.store.UpsertSource(ctx, src); err != nil {
		m.logger.Warnw("failed to persist renamed source", "source_id", id, "error", err)
	}
	return nil
}

// RemoveSource stops any live stream, drops the source locally and deletes
// the persisted record.
func (m *SessionManager) RemoveSource(ctx context.Context, id domain.SourceID) error {
	m.mu.Lock()
	st, exists := m.sources[id]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	m.gen[id]++
	stream := st.stream
	src := st.source
	delete(m.sources, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	retracting := m.broadcasting
	m.mu.Unlock()

	if stream != nil {
		stream.Stop()
		m.metrics.SourceDeactivated(src.Kind)
	}
	if retracting {
		if err := m.transport.RetractSource(ctx, id); err != nil {
			m.logger.Warnw("failed to retract removed source", "source_id", id, "error", err)
		}
	}
	if err := m.store.DeleteSource(ctx, id); err != nil {
		m.logger.Warnw("failed to delete persisted source", "source_id", id, "error", err)
	}
	return nil
}

// ReconnectAll attempts activation for every enabled-but-inactive source.
// One failure never aborts the remaining attempts; the aggregate error
// reports every failed source.
func (m *SessionManager) ReconnectAll(ctx context.Context) error {
	m.mu.Lock()
	var pending []domain.SourceID
	for _, id := range m.order {
		st := m.sources[id]
		if st.source.Enabled && st.phase == domain.PhaseInactive {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range pending {
		if err := m.ActivateSource(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ToggleBroadcasting flips the broadcast state and returns the new state.
//
// Start: register the room id on the relay (a collision surfaces as
// domain.ErrIdentityTaken so the user can pick another id), mark the room
// live, resume enabled sources and begin the thumbnail schedule. Stop:
// deactivate every source first so platform captures are released, then tear
// down the transport and mark the room offline.
func (m *SessionManager) ToggleBroadcasting(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, domain.ErrSessionClosed
	}
	if m.broadcasting {
		m.mu.Unlock()
		return false, m.stopBroadcasting(ctx)
	}
	roomID := m.roomID
	m.mu.Unlock()

	err := m.transport.Start(ctx, roomID, m.feeds, m.onTransportDown)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityTaken) {
			return false, err
		}
		return false, fmt.Errorf("failed to start broadcast: %w", err)
	}

	thumbCtx, thumbCancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		thumbCancel()
		_ = m.transport.Stop(ctx)
		return false, domain.ErrSessionClosed
	}
	m.broadcasting = true
	m.thumbCancel = thumbCancel
	m.mu.Unlock()

	m.metrics.RoomLive(true)
	m.logger.Infow("broadcast started", "room_id", roomID)

	if err := m.store.SetRoomLive(ctx, roomID, true); err != nil {
		m.logger.Warnw("failed to mark room live", "room_id", roomID, "error", err)
	}

	// Resume enabled sources now that receivers can arrive. Failures are
	// per-source notices, not a broadcast failure.
	if err := m.ReconnectAll(ctx); err != nil {
		m.logger.Warnw("some sources did not resume on broadcast start", "error", err)
	}

	go m.thumbnailLoop(thumbCtx)

	return true, nil
}

func (m *SessionManager) stopBroadcasting(ctx context.Context) error {
	m.mu.Lock()
	if !m.broadcasting {
		m.mu.Unlock()
		return nil
	}
	m.broadcasting = false
	if m.thumbCancel != nil {
		m.thumbCancel()
		m.thumbCancel = nil
	}
	var ids []domain.SourceID
	ids = append(ids, m.order...)
	roomID := m.roomID
	m.mu.Unlock()

	// Deactivate every source before transport teardown so captures are
	// released even if the teardown fails.
	for _, id := range ids {
		if err := m.DeactivateSource(ctx, id); err != nil {
			m.logger.Warnw("failed to deactivate source on stop", "source_id", id, "error", err)
		}
	}

	if err := m.transport.Stop(ctx); err != nil {
		m.logger.Warnw("transport teardown failed", "room_id", roomID, "error", err)
	}

	m.metrics.RoomLive(false)
	m.logger.Infow("broadcast stopped", "room_id", roomID)

	if err := m.store.SetRoomLive(ctx, roomID, false); err != nil {
		m.logger.Warnw("failed to mark room offline", "room_id", roomID, "error", err)
	}
	return nil
}

// onTransportDown handles an unrecoverable transport failure. Broadcasting
// reverts to off; sources keep their streams so the user can toggle back on
// without re-granting captures.
func (m *SessionManager) onTransportDown(cause error) {
	m.mu.Lock()
	if !m.broadcasting {
		m.mu.Unlock()
		return
	}
	m.broadcasting = false
	if m.thumbCancel != nil {
		m.thumbCancel()
		m.thumbCancel = nil
	}
	roomID := m.roomID
	m.mu.Unlock()

	m.metrics.RoomLive(false)
	m.logger.Warnw("transport down, broadcast reverted", "room_id", roomID, "error", cause)
	m.notice(fmt.Sprintf("broadcast interrupted: %v", cause))

	ctx, cancel := context.WithTimeout(context.Background(), m.snapshotTimeout())
	defer cancel()
	if err := m.store.SetRoomLive(ctx, roomID, false); err != nil {
		m.logger.Warnw("failed to mark room offline", "room_id", roomID, "error", err)
	}
}

// RenameRoom migrates the session to a new room id. Refused while
// broadcasting: the room id is the live signaling identity.
func (m *SessionManager) RenameRoom(ctx context.Context, newID domain.RoomID) error {
	if err := validation.RoomID(string(newID)); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if m.broadcasting {
		m.mu.Unlock()
		return fmt.Errorf("cannot rename room while broadcasting")
	}
	oldID := m.roomID
	m.mu.Unlock()

	if oldID == newID {
		return nil
	}

	if err := m.store.RenameRoom(ctx, oldID, newID); err != nil {
		return err
	}

	m.mu.Lock()
	m.roomID = newID
	for _, st := range m.sources {
		st.source.RoomID = newID
	}
	m.mu.Unlock()

	m.logger.Infow("room renamed", "old_room_id", oldID, "new_room_id", newID)
	return nil
}

// SaveSnapshot persists the current labels, enabled flags and live flag on a
// fire-and-forget basis. Used on teardown paths that cannot wait for a
// response.
func (m *SessionManager) SaveSnapshot() {
	m.mu.Lock()
	roomID := m.roomID
	live := m.broadcasting
	sources := make([]domain.Source, 0, len(m.order))
	for _, id := range m.order {
		sources = append(sources, m.sources[id].source)
	}
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.snapshotTimeout())
		defer cancel()

		for _, src := range sources {
			if _, err := m.store.UpsertSource(ctx, src); err != nil {
				m.logger.Warnw("snapshot: failed to persist source", "source_id", src.ID, "error", err)
			}
		}
		if err := m.store.SetRoomLive(ctx, roomID, live); err != nil {
			m.logger.Warnw("snapshot: failed to persist live flag", "room_id", roomID, "error", err)
		}
	}()
}

// Close tears the session down. Tracks are stopped synchronously so platform
// captures are released even if everything after fails; the final snapshot
// is fired without waiting.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	wasBroadcasting := m.broadcasting
	m.broadcasting = false
	if m.thumbCancel != nil {
		m.thumbCancel()
		m.thumbCancel = nil
	}
	var streams []*domain.MediaStream
	for _, st := range m.sources {
		if st.stream != nil {
			streams = append(streams, st.stream)
			st.stream = nil
		}
		st.phase = domain.PhaseInactive
	}
	roomID := m.roomID
	m.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}

	if wasBroadcasting {
		if err := m.transport.Stop(ctx); err != nil {
			m.logger.Warnw("transport teardown failed on close", "room_id", roomID, "error", err)
		}
		m.metrics.RoomLive(false)
		go func() {
			offCtx, cancel := context.WithTimeout(context.Background(), m.snapshotTimeout())
			defer cancel()
			if err := m.store.SetRoomLive(offCtx, roomID, false); err != nil {
				m.logger.Warnw("failed to mark room offline on close", "room_id", roomID, "error", err)
			}
		}()
	}

	m.SaveSnapshot()
	m.logger.Infow("session closed", "room_id", roomID)
	return nil
}

// feeds is the FeedProvider handed to the transport: the active sources in
// addition order with their live streams.
func (m *SessionManager) feeds() []domain.Feed {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Feed, 0, len(m.order))
	for _, id := range m.order {
		st := m.sources[id]
		if st.phase == domain.PhaseActive && st.stream != nil {
			out = append(out, domain.Feed{Source: st.source, Stream: st.stream})
		}
	}
	return out
}

// thumbnailLoop refreshes the room thumbnail while broadcasting: one capture
// after the settle delay, then on the configured interval.
func (m *SessionManager) thumbnailLoop(ctx context.Context) {
	settle := m.cfg.ThumbnailSettleDelay
	if settle <= 0 {
		settle = 3 * time.Second
	}
	interval := m.cfg.ThumbnailInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(settle):
	}
	m.captureThumbnail(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.captureThumbnail(ctx)
		}
	}
}

// captureThumbnail grabs a JPEG frame from the first active video-capable
// source and persists it as a data URI. Best-effort on every step.
func (m *SessionManager) captureThumbnail(ctx context.Context) {
	m.mu.Lock()
	var stream *domain.MediaStream
	for _, id := range m.order {
		st := m.sources[id]
		if st.phase == domain.PhaseActive && st.stream != nil &&
			st.source.Kind.HasVideo() && st.stream.CanSnapshot() {
			stream = st.stream
			break
		}
	}
	roomID := m.roomID
	m.mu.Unlock()

	if stream == nil {
		return
	}

	frame, err := stream.Snapshot()
	if err != nil {
		m.logger.Debugw("thumbnail capture failed", "room_id", roomID, "error", err)
		return
	}

	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
	if err := m.store.SetRoomThumbnail(ctx, roomID, uri); err != nil {
		m.logger.Warnw("failed to persist thumbnail", "room_id", roomID, "error", err)
	}
}

func (m *SessionManager) hintFor(kind domain.SourceKind) domain.CaptureHint {
	if kind == domain.KindScreen {
		return m.cfg.ScreenHint
	}
	return m.cfg.CameraHint
}

func (m *SessionManager) snapshotTimeout() time.Duration {
	if m.cfg.SnapshotTimeout > 0 {
		return m.cfg.SnapshotTimeout
	}
	return 2 * time.Second
}

// noopMetrics is used when no collector is wired in.
type noopMetrics struct{}

func (noopMetrics) ReceiverConnected()                        {}
func (noopMetrics) ReceiverDisconnected()                     {}
func (noopMetrics) SourceActivated(domain.SourceKind)         {}
func (noopMetrics) SourceDeactivated(domain.SourceKind)       {}
func (noopMetrics) CaptureFailure(domain.SourceKind)          {}
func (noopMetrics) CallPushed()                               {}
func (noopMetrics) RoomLive(bool)                             {}
