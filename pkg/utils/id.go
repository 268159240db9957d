package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a prefixed unique identifier, e.g. "src_6f1a...".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// NewSourceID generates the canonical identifier for a source record.
func NewSourceID() string {
	return NewID("src")
}

// NewCallID generates an identifier for one outbound media call.
func NewCallID() string {
	return NewID("call")
}

// NewReceiverID generates an identifier for a connecting receiver peer.
func NewReceiverID() string {
	return NewID("rcv")
}
