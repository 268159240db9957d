package domain

type SourceID string

// SourceKind is the tagged variant for what a source captures.
type SourceKind string

const (
	KindScreen     SourceKind = "screen"
	KindCamera     SourceKind = "camera"
	KindMicrophone SourceKind = "microphone"
)

// Valid reports whether k is one of the three known kinds. Conversion from
// loosely-typed rows happens at the persistence boundary only.
func (k SourceKind) Valid() bool {
	switch k {
	case KindScreen, KindCamera, KindMicrophone:
		return true
	}
	return false
}

// HasVideo reports whether streams of this kind carry a video track.
func (k SourceKind) HasVideo() bool {
	return k == KindScreen || k == KindCamera
}

// DefaultLabel is the label a freshly added source gets before uniquifying.
func (k SourceKind) DefaultLabel() string {
	switch k {
	case KindScreen:
		return "Screen"
	case KindCamera:
		return "Camera"
	case KindMicrophone:
		return "Microphone"
	}
	return "Source"
}

// Source is the persisted record for one logical capture feed. Enabled is
// intent ("should be active when the room is loaded"); whether the source
// currently holds a live platform stream is session state, not persisted.
type Source struct {
	ID       SourceID   `json:"id"`
	RoomID   RoomID     `json:"room_id"`
	Label    string     `json:"label"`
	Kind     SourceKind `json:"type"`
	DeviceID string     `json:"device_id,omitempty"`
	Enabled  bool       `json:"is_enabled"`
}

// SourcePhase is the transient activation state of a source within a session.
type SourcePhase string

const (
	PhaseInactive   SourcePhase = "inactive"
	PhaseActivating SourcePhase = "activating"
	PhaseActive     SourcePhase = "active"
)

// Feed pairs a source's persisted identity with its live media stream. The
// transport layer borrows the stream's track references to push frames; it
// never stops or replaces tracks itself.
type Feed struct {
	Source Source
	Stream *MediaStream
}

// CaptureHint carries best-effort capture tuning. Zero values mean "platform
// default".
type CaptureHint struct {
	FrameRate int
	Width     int
	Height    int
}
