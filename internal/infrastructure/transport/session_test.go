package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/infrastructure/signal"
	"castdeck/pkg/utils"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeConn is a scripted SignalConn: inbound frames are queued by the test,
// outbound frames are captured for assertions.
type fakeConn struct {
	inbound  chan signal.Message
	outbound chan signal.Message
	closed   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan signal.Message, 16),
		outbound: make(chan signal.Message, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (signal.Message, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.closed:
		return signal.Message{}, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(msg signal.Message) error {
	select {
	case c.outbound <- msg:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *fakeConn) push(msg signal.Message) { c.inbound <- msg }

func (c *fakeConn) nextOutbound(t *testing.T) signal.Message {
	select {
	case msg := <-c.outbound:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return signal.Message{}
	}
}

type fakeDialer struct {
	conn    *fakeConn
	dialErr error
	peerID  string
}

func (d *fakeDialer) Dial(ctx context.Context, url, peerID string) (SignalConn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.peerID = peerID
	return d.conn, nil
}

func testFeed(t *testing.T, id domain.SourceID, label string, kind domain.SourceKind) domain.Feed {
	var tracks []*domain.MediaTrack
	if kind.HasVideo() {
		local, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			utils.NewID("trk"), "test-video",
		)
		require.NoError(t, err)
		tracks = append(tracks, domain.NewMediaTrack(local.ID(), domain.TrackVideo, local, nil))
	} else {
		local, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			utils.NewID("trk"), "test-audio",
		)
		require.NoError(t, err)
		tracks = append(tracks, domain.NewMediaTrack(local.ID(), domain.TrackAudio, local, nil))
	}
	return domain.Feed{
		Source: domain.Source{ID: id, RoomID: "r1", Label: label, Kind: kind, Enabled: true},
		Stream: domain.NewMediaStream(utils.NewID("stm"), tracks, nil),
	}
}

type transportFixture struct {
	session *Session
	conn    *fakeConn
	dialer  *fakeDialer
	feeds   []domain.Feed
	downs   chan error
}

func newTransportFixture(t *testing.T) *transportFixture {
	f := &transportFixture{
		conn:  newFakeConn(),
		downs: make(chan error, 1),
	}
	f.dialer = &fakeDialer{conn: f.conn}
	f.session = NewSession(
		Config{RelayURL: "ws://relay/ws", GatherTimeout: 2 * time.Second},
		f.dialer, nil, zaptest.NewLogger(t).Sugar(),
	).(*Session)
	return f
}

func (f *transportFixture) start(t *testing.T) {
	f.conn.push(signal.Message{Type: signal.TypeRegistered})
	err := f.session.Start(context.Background(), "r1",
		func() []domain.Feed { return f.feeds },
		func(err error) { f.downs <- err },
	)
	require.NoError(t, err)
}

func TestSession_Start(t *testing.T) {
	t.Run("registers the room id", func(t *testing.T) {
		f := newTransportFixture(t)
		f.start(t)
		defer f.session.Stop(context.Background())

		assert.Equal(t, domain.TransportLive, f.session.State())
		assert.Equal(t, "r1", f.dialer.peerID)
	})

	t.Run("identity collision is the distinct error", func(t *testing.T) {
		f := newTransportFixture(t)
		f.conn.push(signal.Message{Type: signal.TypeError, Code: signal.CodeIdentityTaken})

		err := f.session.Start(context.Background(), "r1", func() []domain.Feed { return nil }, nil)

		assert.ErrorIs(t, err, domain.ErrIdentityTaken)
		assert.Equal(t, domain.TransportOffline, f.session.State())
	})

	t.Run("dial failure is a generic transport error", func(t *testing.T) {
		f := newTransportFixture(t)
		f.dialer.dialErr = errors.New("connection refused")

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := f.session.Start(ctx, "r1", func() []domain.Feed { return nil }, nil)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrIdentityTaken)
		assert.Equal(t, domain.TransportOffline, f.session.State())
	})
}

func TestSession_ReceiverConnect(t *testing.T) {
	f := newTransportFixture(t)
	f.feeds = []domain.Feed{
		testFeed(t, "src_a", "Screen", domain.KindScreen),
		testFeed(t, "src_b", "Microphone", domain.KindMicrophone),
	}
	f.start(t)
	defer f.session.Stop(context.Background())

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})

	// One call frame per active source, each tagged with id/label/kind.
	seen := map[string]signal.CallMetadata{}
	for i := 0; i < 2; i++ {
		msg := f.conn.nextOutbound(t)
		require.Equal(t, signal.TypeCall, msg.Type)
		assert.Equal(t, "rcv-1", msg.To)

		var meta signal.CallMetadata
		require.NoError(t, json.Unmarshal(msg.Payload, &meta))
		assert.NotEmpty(t, meta.SDP)
		assert.NotEmpty(t, meta.CallID)
		seen[meta.ID] = meta
	}

	require.Contains(t, seen, "src_a")
	assert.Equal(t, "Screen", seen["src_a"].Label)
	assert.Equal(t, "screen", seen["src_a"].Kind)
	require.Contains(t, seen, "src_b")
	assert.Equal(t, "Microphone", seen["src_b"].Label)

	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSession_PushAndRetract(t *testing.T) {
	f := newTransportFixture(t)
	f.start(t)
	defer f.session.Stop(context.Background())

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})
	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 1 }, time.Second, 10*time.Millisecond)

	feed := testFeed(t, "src_cam", "Camera", domain.KindCamera)
	require.NoError(t, f.session.PushSource(context.Background(), feed))

	msg := f.conn.nextOutbound(t)
	require.Equal(t, signal.TypeCall, msg.Type)
	var meta signal.CallMetadata
	require.NoError(t, json.Unmarshal(msg.Payload, &meta))
	assert.Equal(t, "src_cam", meta.ID)

	require.NoError(t, f.session.RetractSource(context.Background(), "src_cam"))

	bye := f.conn.nextOutbound(t)
	assert.Equal(t, signal.TypeBye, bye.Type)
	assert.Equal(t, "rcv-1", bye.To)
}

func TestSession_PushReplacesExistingCall(t *testing.T) {
	f := newTransportFixture(t)
	f.start(t)
	defer f.session.Stop(context.Background())

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})
	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 1 }, time.Second, 10*time.Millisecond)

	feed := testFeed(t, "src_cam", "Camera", domain.KindCamera)
	require.NoError(t, f.session.PushSource(context.Background(), feed))
	first := f.conn.nextOutbound(t)

	replacement := testFeed(t, "src_cam", "Camera", domain.KindCamera)
	require.NoError(t, f.session.PushSource(context.Background(), replacement))
	second := f.conn.nextOutbound(t)

	var firstMeta, secondMeta signal.CallMetadata
	require.NoError(t, json.Unmarshal(first.Payload, &firstMeta))
	require.NoError(t, json.Unmarshal(second.Payload, &secondMeta))
	assert.NotEqual(t, firstMeta.CallID, secondMeta.CallID, "replacement opens a fresh call")
}

func TestSession_PortRangeRestrictsCandidates(t *testing.T) {
	f := &transportFixture{
		conn:  newFakeConn(),
		downs: make(chan error, 1),
	}
	f.dialer = &fakeDialer{conn: f.conn}
	f.session = NewSession(
		Config{
			RelayURL:      "ws://relay/ws",
			GatherTimeout: 2 * time.Second,
			PortRangeMin:  50000,
			PortRangeMax:  50099,
		},
		f.dialer, nil, zaptest.NewLogger(t).Sugar(),
	).(*Session)
	f.feeds = []domain.Feed{testFeed(t, "src_a", "Camera", domain.KindCamera)}
	f.start(t)
	defer f.session.Stop(context.Background())

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})

	msg := f.conn.nextOutbound(t)
	require.Equal(t, signal.TypeCall, msg.Type)
	var meta signal.CallMetadata
	require.NoError(t, json.Unmarshal(msg.Payload, &meta))
	require.NotEmpty(t, meta.SDP)

	// Any gathered host candidate must sit inside the configured range.
	for _, line := range strings.Split(meta.SDP, "\r\n") {
		if !strings.HasPrefix(line, "a=candidate:") || !strings.Contains(line, "typ host") {
			continue
		}
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 6, "unexpected candidate line %q", line)
		port, err := strconv.Atoi(fields[5])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, port, 50000, "candidate outside port range: %q", line)
		assert.LessOrEqual(t, port, 50099, "candidate outside port range: %q", line)
	}
}

func TestSession_ReceiverGone(t *testing.T) {
	f := newTransportFixture(t)
	f.start(t)
	defer f.session.Stop(context.Background())

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})
	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 1 }, time.Second, 10*time.Millisecond)

	f.conn.push(signal.Message{Type: signal.TypePeerGone, From: "rcv-1"})
	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSession_Stop(t *testing.T) {
	f := newTransportFixture(t)
	f.start(t)

	f.conn.push(signal.Message{Type: signal.TypeConnect, From: "rcv-1"})
	assert.Eventually(t, func() bool { return f.session.ReceiverCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.session.Stop(context.Background()))

	assert.Equal(t, domain.TransportOffline, f.session.State())
	assert.Zero(t, f.session.ReceiverCount())

	// A clean stop never reports a transport failure.
	select {
	case err := <-f.downs:
		t.Fatalf("unexpected onDown: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSession_RelayLossReportsDown(t *testing.T) {
	f := newTransportFixture(t)
	f.start(t)

	f.conn.Close()

	select {
	case err := <-f.downs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("onDown was not invoked after relay loss")
	}
	assert.Equal(t, domain.TransportOffline, f.session.State())
}
