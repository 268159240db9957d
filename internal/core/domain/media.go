package domain

import (
	"sync/atomic"

	"github.com/pion/webrtc/v3"
)

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaTrack wraps one live platform track. Stopping a track halts its
// producer and is idempotent; a stopped track never comes back.
type MediaTrack struct {
	ID    string
	Kind  TrackKind
	Local webrtc.TrackLocal

	live atomic.Bool
	stop func()
}

// NewMediaTrack returns a live track whose producer is halted by stop.
func NewMediaTrack(id string, kind TrackKind, local webrtc.TrackLocal, stop func()) *MediaTrack {
	t := &MediaTrack{ID: id, Kind: kind, Local: local, stop: stop}
	t.live.Store(true)
	return t
}

func (t *MediaTrack) Live() bool { return t.live.Load() }

func (t *MediaTrack) Stop() {
	if t.live.CompareAndSwap(true, false) && t.stop != nil {
		t.stop()
	}
}

// MediaStream is a set of tracks acquired together from one capture request.
// It is exclusively owned by the session manager; deactivation must stop
// every track before the stream is discarded so no platform capture keeps
// running after logical deactivation.
type MediaStream struct {
	ID     string
	tracks []*MediaTrack

	snapshot func() ([]byte, error)
}

// NewMediaStream builds a stream from its tracks. snapshot, when non-nil,
// returns a JPEG frame of the current video content and is used for room
// thumbnails.
func NewMediaStream(id string, tracks []*MediaTrack, snapshot func() ([]byte, error)) *MediaStream {
	return &MediaStream{ID: id, tracks: tracks, snapshot: snapshot}
}

func (s *MediaStream) Tracks() []*MediaTrack { return s.tracks }

// LiveTracks counts tracks that are still producing.
func (s *MediaStream) LiveTracks() int {
	n := 0
	for _, t := range s.tracks {
		if t.Live() {
			n++
		}
	}
	return n
}

// Stop stops every track.
func (s *MediaStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// CanSnapshot reports whether the stream can produce a thumbnail frame.
func (s *MediaStream) CanSnapshot() bool { return s.snapshot != nil }

// Snapshot returns a JPEG frame from the stream's video content.
func (s *MediaStream) Snapshot() ([]byte, error) {
	if s.snapshot == nil {
		return nil, ErrNoVideoTrack
	}
	return s.snapshot()
}
