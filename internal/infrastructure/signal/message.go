package signal

import "encoding/json"

// Message is the single frame type exchanged over the relay. From is stamped
// by the relay on forwarded frames so peers cannot spoof each other; To
// names the destination identity for routed types.
type Message struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Code    string          `json:"code,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame types. registered/error originate from the relay; the rest are
// routed peer-to-peer.
const (
	TypeRegistered = "registered"
	TypeError      = "error"
	TypeConnect    = "connect"
	TypeCall       = "call"
	TypeAnswer     = "answer"
	TypeICE        = "ice"
	TypeBye        = "bye"
	TypePeerGone   = "peer-gone"
	TypeClose      = "close"
)

// Error codes carried on TypeError frames.
const (
	// CodeIdentityTaken means the requested identity is already registered.
	// The client maps this to its distinct user-facing error.
	CodeIdentityTaken = "identity-taken"
	CodeUnknownPeer   = "unknown-peer"
	CodeBadFrame      = "bad-frame"
	CodeRateLimited   = "rate-limited"
)

// CallMetadata is the payload attached to a TypeCall frame: everything a
// receiver needs to demultiplex the incoming media call. Routing happens by
// the stable source id; label is display-only.
type CallMetadata struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Kind   string `json:"type"`
	SDP    string `json:"sdp,omitempty"`
	CallID string `json:"call_id,omitempty"`
}
