package domain

import "time"

type ReceiverID string

// Receiver is a connected consuming peer. Tracked in memory only; the set
// exists to report a live receiver count and to route pushed calls.
type Receiver struct {
	ID          ReceiverID
	ConnectedAt time.Time
}

// TransportState is the broadcast transport lifecycle.
type TransportState string

const (
	TransportOffline  TransportState = "offline"
	TransportStarting TransportState = "starting"
	TransportLive     TransportState = "live"
)
