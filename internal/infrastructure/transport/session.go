package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
	"castdeck/internal/infrastructure/signal"
	"castdeck/pkg/retry"
	"castdeck/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SignalConn is one registered connection to the relay. Implementations must
// allow one concurrent reader and serialize writes internally.
type SignalConn interface {
	ReadMessage() (signal.Message, error)
	WriteMessage(msg signal.Message) error
	Close() error
}

// Dialer opens a SignalConn registered under peerID. The first frame the
// relay sends after the dial is the registration outcome.
type Dialer interface {
	Dial(ctx context.Context, url, peerID string) (SignalConn, error)
}

// Config carries the transport tuning.
type Config struct {
	RelayURL      string
	DialTimeout   time.Duration
	GatherTimeout time.Duration
	ICEServers    []webrtc.ICEServer
	// PortRangeMin/Max restrict the local UDP ports used for media. Zero
	// means any ephemeral port.
	PortRangeMin uint16
	PortRangeMax uint16
	Quality      Hints
}

// Session implements the peer-to-peer transport: one signaling identity per
// broadcast, accept-all inbound receivers, one independent media call per
// active source per receiver.
type Session struct {
	dialer  Dialer
	cfg     Config
	api     *webrtc.API
	metrics ports.Metrics
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	state     domain.TransportState
	conn      SignalConn
	roomID    domain.RoomID
	feeds     ports.FeedProvider
	onDown    func(error)
	receivers map[domain.ReceiverID]*receiverState
	stopping  bool
}

// receiverState tracks one connected receiver and its per-source calls.
type receiverState struct {
	receiver domain.Receiver
	calls    map[domain.SourceID]*mediaCall
}

// mediaCall is one outbound peer connection carrying one source's tracks.
type mediaCall struct {
	id     string
	source domain.Source
	pc     *webrtc.PeerConnection
}

func NewSession(cfg Config, dialer Dialer, metrics ports.Metrics, logger *zap.SugaredLogger) ports.Transport {
	if dialer == nil {
		dialer = &wsDialer{timeout: cfg.DialTimeout}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRangeMin > 0 && cfg.PortRangeMax > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(cfg.PortRangeMin, cfg.PortRangeMax); err != nil {
			logger.Warnw("invalid media port range, using ephemeral ports",
				"min", cfg.PortRangeMin,
				"max", cfg.PortRangeMax,
				"error", err,
			)
		}
	}

	return &Session{
		dialer:    dialer,
		cfg:       cfg,
		api:       webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		metrics:   metrics,
		logger:    logger,
		state:     domain.TransportOffline,
		receivers: make(map[domain.ReceiverID]*receiverState),
	}
}

func (s *Session) State() domain.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ReceiverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}

// Start registers roomID on the relay. The dial is retried with backoff (the
// relay may still be coming up at process start); an identity collision is
// final and surfaces as domain.ErrIdentityTaken.
func (s *Session) Start(ctx context.Context, roomID domain.RoomID, feeds ports.FeedProvider, onDown func(error)) error {
	s.mu.Lock()
	if s.state != domain.TransportOffline {
		s.mu.Unlock()
		return fmt.Errorf("transport already %s", s.state)
	}
	s.state = domain.TransportStarting
	s.mu.Unlock()

	var conn SignalConn
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		c, dialErr := s.dialer.Dial(ctx, s.cfg.RelayURL, string(roomID))
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})
	if err != nil {
		s.setOffline()
		return fmt.Errorf("failed to reach relay: %w", err)
	}

	first, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		s.setOffline()
		return fmt.Errorf("relay closed during registration: %w", err)
	}
	switch {
	case first.Type == signal.TypeError && first.Code == signal.CodeIdentityTaken:
		conn.Close()
		s.setOffline()
		return domain.ErrIdentityTaken
	case first.Type == signal.TypeRegistered:
	default:
		conn.Close()
		s.setOffline()
		return fmt.Errorf("unexpected registration reply %q", first.Type)
	}

	s.mu.Lock()
	s.conn = conn
	s.roomID = roomID
	s.feeds = feeds
	s.onDown = onDown
	s.stopping = false
	s.state = domain.TransportLive
	s.mu.Unlock()

	s.logger.Infow("transport live", "room_id", roomID)
	go s.readLoop(conn)
	return nil
}

func (s *Session) setOffline() {
	s.mu.Lock()
	s.state = domain.TransportOffline
	s.mu.Unlock()
}

func (s *Session) readLoop(conn SignalConn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			onDown := s.onDown
			s.mu.Unlock()
			if !stopping {
				s.teardown()
				if onDown != nil {
					onDown(fmt.Errorf("relay connection lost: %w", err))
				}
			}
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Session) handleMessage(msg signal.Message) {
	switch msg.Type {
	case signal.TypeConnect:
		s.handleReceiverConnect(domain.ReceiverID(msg.From))
	case signal.TypeAnswer:
		s.handleAnswer(domain.ReceiverID(msg.From), msg.Payload)
	case signal.TypeICE:
		s.handleICE(domain.ReceiverID(msg.From), msg.Payload)
	case signal.TypeBye, signal.TypePeerGone:
		s.handleReceiverGone(domain.ReceiverID(msg.From))
	case signal.TypeError:
		s.logger.Warnw("relay error frame", "code", msg.Code)
	default:
		s.logger.Debugw("ignoring frame", "type", msg.Type)
	}
}

// handleReceiverConnect accepts unconditionally: any peer knowing the room
// id may connect. Every currently active source is pushed immediately.
func (s *Session) handleReceiverConnect(id domain.ReceiverID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	if _, exists := s.receivers[id]; exists {
		s.mu.Unlock()
		return
	}
	s.receivers[id] = &receiverState{
		receiver: domain.Receiver{ID: id, ConnectedAt: time.Now()},
		calls:    make(map[domain.SourceID]*mediaCall),
	}
	feeds := s.feeds
	s.mu.Unlock()

	s.metrics.ReceiverConnected()
	s.logger.Infow("receiver connected", "receiver_id", id)

	if feeds == nil {
		return
	}
	for _, feed := range feeds() {
		if err := s.openCall(id, feed); err != nil {
			s.logger.Warnw("failed to push source to receiver",
				"receiver_id", id,
				"source_id", feed.Source.ID,
				"error", err,
			)
		}
	}
}

func (s *Session) handleReceiverGone(id domain.ReceiverID) {
	s.mu.Lock()
	state, exists := s.receivers[id]
	if !exists {
		s.mu.Unlock()
		return
	}
	delete(s.receivers, id)
	s.mu.Unlock()

	for _, call := range state.calls {
		call.pc.Close()
	}
	s.metrics.ReceiverDisconnected()
	s.logger.Infow("receiver gone", "receiver_id", id, "closed_calls", len(state.calls))
}

// answerPayload is the receiver's reply to a call frame.
type answerPayload struct {
	CallID string `json:"call_id"`
	SDP    string `json:"sdp"`
}

func (s *Session) handleAnswer(id domain.ReceiverID, raw json.RawMessage) {
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warnw("bad answer payload", "receiver_id", id, "error", err)
		return
	}

	call := s.findCall(id, payload.CallID)
	if call == nil {
		s.logger.Debugw("answer for unknown call", "receiver_id", id, "call_id", payload.CallID)
		return
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: payload.SDP}
	if err := call.pc.SetRemoteDescription(desc); err != nil {
		s.logger.Warnw("failed to apply answer", "call_id", payload.CallID, "error", err)
	}
}

type icePayload struct {
	CallID    string                  `json:"call_id"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (s *Session) handleICE(id domain.ReceiverID, raw json.RawMessage) {
	var payload icePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	call := s.findCall(id, payload.CallID)
	if call == nil {
		return
	}
	if err := call.pc.AddICECandidate(payload.Candidate); err != nil {
		s.logger.Debugw("failed to add remote candidate", "call_id", payload.CallID, "error", err)
	}
}

func (s *Session) findCall(id domain.ReceiverID, callID string) *mediaCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, exists := s.receivers[id]
	if !exists {
		return nil
	}
	for _, call := range state.calls {
		if call.id == callID {
			return call
		}
	}
	return nil
}

// PushSource pushes (or replaces) one source's stream on every connected
// receiver.
func (s *Session) PushSource(ctx context.Context, feed domain.Feed) error {
	s.mu.Lock()
	if s.state != domain.TransportLive {
		s.mu.Unlock()
		return nil
	}
	ids := make([]domain.ReceiverID, 0, len(s.receivers))
	for id := range s.receivers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.openCall(id, feed); err != nil {
			s.logger.Warnw("failed to push source",
				"receiver_id", id,
				"source_id", feed.Source.ID,
				"error", err,
			)
		}
	}
	return nil
}

// RetractSource closes the source's calls on every connected receiver and
// tells them the source is gone.
func (s *Session) RetractSource(ctx context.Context, id domain.SourceID) error {
	s.mu.Lock()
	conn := s.conn
	type closing struct {
		receiver domain.ReceiverID
		call     *mediaCall
	}
	var toClose []closing
	for rid, state := range s.receivers {
		if call, ok := state.calls[id]; ok {
			delete(state.calls, id)
			toClose = append(toClose, closing{receiver: rid, call: call})
		}
	}
	s.mu.Unlock()

	for _, c := range toClose {
		c.call.pc.Close()
		if conn != nil {
			payload, _ := json.Marshal(map[string]string{"call_id": c.call.id, "id": string(id)})
			if err := conn.WriteMessage(signal.Message{
				Type:    signal.TypeBye,
				To:      string(c.receiver),
				Payload: payload,
			}); err != nil {
				s.logger.Debugw("failed to send bye", "receiver_id", c.receiver, "error", err)
			}
		}
	}
	return nil
}

// openCall builds one peer connection for (receiver, source), attaches the
// feed's live tracks, gathers candidates and sends the call frame. A
// previous call for the same source on this receiver is replaced.
func (s *Session) openCall(receiverID domain.ReceiverID, feed domain.Feed) error {
	s.mu.Lock()
	state, exists := s.receivers[receiverID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("receiver %s not connected", receiverID)
	}
	old := state.calls[feed.Source.ID]
	delete(state.calls, feed.Source.ID)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("transport not connected")
	}

	if old != nil {
		old.pc.Close()
	}

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.cfg.ICEServers})
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	var senders []*webrtc.RTPSender
	for _, track := range feed.Stream.Tracks() {
		if !track.Live() {
			continue
		}
		sender, err := pc.AddTrack(track.Local)
		if err != nil {
			pc.Close()
			return fmt.Errorf("failed to add track: %w", err)
		}
		senders = append(senders, sender)
	}
	if len(senders) == 0 {
		pc.Close()
		return fmt.Errorf("source %s has no live tracks", feed.Source.ID)
	}

	// Drain inbound RTCP so interceptors keep running.
	for _, sender := range senders {
		go drainRTCP(sender)
	}

	callID := utils.NewCallID()
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateConnected {
			// Best-effort tuning; failures are swallowed.
			applyQualityHints(pc, senders, s.cfg.Quality, s.logger)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to create offer: %w", err)
	}

	// Non-trickle: wait for the full candidate set so the call frame is
	// self-contained.
	gatherDone := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("failed to set local description: %w", err)
	}

	gatherTimeout := s.cfg.GatherTimeout
	if gatherTimeout <= 0 {
		gatherTimeout = 5 * time.Second
	}
	select {
	case <-gatherDone:
	case <-time.After(gatherTimeout):
		// Partial candidate set still works for host-local receivers.
		s.logger.Debugw("candidate gathering timed out", "call_id", callID)
	}

	meta := signal.CallMetadata{
		ID:     string(feed.Source.ID),
		Label:  feed.Source.Label,
		Kind:   string(feed.Source.Kind),
		SDP:    pc.LocalDescription().SDP,
		CallID: callID,
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to marshal call metadata: %w", err)
	}
	if err := conn.WriteMessage(signal.Message{
		Type:    signal.TypeCall,
		To:      string(receiverID),
		Payload: payload,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("failed to send call frame: %w", err)
	}

	call := &mediaCall{id: callID, source: feed.Source, pc: pc}
	s.mu.Lock()
	if state, ok := s.receivers[receiverID]; ok {
		state.calls[feed.Source.ID] = call
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		pc.Close()
		return fmt.Errorf("receiver %s left during call setup", receiverID)
	}

	s.metrics.CallPushed()
	s.logger.Infow("call pushed",
		"receiver_id", receiverID,
		"source_id", feed.Source.ID,
		"label", feed.Source.Label,
		"call_id", callID,
	)
	return nil
}

// Stop closes every call, clears the receiver set and releases the
// identity.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.TransportOffline {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(signal.Message{Type: signal.TypeClose})
	}
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	receivers := s.receivers
	s.receivers = make(map[domain.ReceiverID]*receiverState)
	s.feeds = nil
	s.state = domain.TransportOffline
	roomID := s.roomID
	s.mu.Unlock()

	closed := 0
	for range receivers {
		s.metrics.ReceiverDisconnected()
	}
	for _, state := range receivers {
		for _, call := range state.calls {
			call.pc.Close()
			closed++
		}
	}
	if conn != nil {
		conn.Close()
	}
	s.logger.Infow("transport offline", "room_id", roomID, "closed_calls", closed)
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// wsDialer is the production dialer over gorilla/websocket.
type wsDialer struct {
	timeout time.Duration
}

func (d *wsDialer) Dial(ctx context.Context, url, peerID string) (SignalConn, error) {
	timeout := d.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url+"?peer_id="+peerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() (signal.Message, error) {
	var msg signal.Message
	err := c.conn.ReadJSON(&msg)
	return msg, err
}

func (c *wsConn) WriteMessage(msg signal.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

type nopMetrics struct{}

func (nopMetrics) ReceiverConnected()                  {}
func (nopMetrics) ReceiverDisconnected()               {}
func (nopMetrics) SourceActivated(domain.SourceKind)   {}
func (nopMetrics) SourceDeactivated(domain.SourceKind) {}
func (nopMetrics) CaptureFailure(domain.SourceKind)    {}
func (nopMetrics) CallPushed()                         {}
func (nopMetrics) RoomLive(bool)                       {}
