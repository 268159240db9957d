package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxRoomIDLength = 64
	maxLabelLength  = 80
)

// Room ids live in a shared signaling namespace, so the charset is kept to
// what every relay implementation routes safely.
var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// RoomID validates a user-chosen room identifier.
func RoomID(id string) error {
	if id == "" {
		return fmt.Errorf("room id must not be empty")
	}
	if len(id) > maxRoomIDLength {
		return fmt.Errorf("room id must be at most %d characters", maxRoomIDLength)
	}
	if !roomIDPattern.MatchString(id) {
		return fmt.Errorf("room id may only contain letters, digits, '-' and '_'")
	}
	return nil
}

// SourceLabel validates a human-readable source label.
func SourceLabel(label string) error {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return fmt.Errorf("label must not be empty")
	}
	if trimmed != label {
		return fmt.Errorf("label must not have leading or trailing spaces")
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return fmt.Errorf("label must be at most %d characters", maxLabelLength)
	}
	return nil
}
