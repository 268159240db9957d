package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrSourceNotFound = errors.New("source not found")
	ErrDuplicateLabel = errors.New("label already in use in this room")
	ErrNoVideoTrack   = errors.New("stream has no video track")

	// ErrIdentityTaken means the room id is already registered on the
	// signaling relay. The user must pick a different room id; this must
	// never be reported as a generic transport failure.
	ErrIdentityTaken = errors.New("room id already taken on the relay")

	// Capture failures. None of these are fatal to the session: the source
	// simply stays inactive.
	ErrPermissionDenied  = errors.New("capture permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrUserCancelled     = errors.New("capture cancelled by user")

	ErrSessionClosed = errors.New("session closed")
)

// IsCaptureError reports whether err is one of the expected, non-fatal
// capture failures.
func IsCaptureError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrUserCancelled)
}
