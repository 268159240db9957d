package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomID(t *testing.T) {
	valid := []string{"demo", "my-room", "Room_42", "a", strings.Repeat("x", 64)}
	for _, id := range valid {
		assert.NoError(t, RoomID(id), id)
	}

	invalid := []string{
		"",
		"-leading-dash",
		"_leading_underscore",
		"has space",
		"has/slash",
		"émoji",
		strings.Repeat("x", 65),
	}
	for _, id := range invalid {
		assert.Error(t, RoomID(id), id)
	}
}

func TestSourceLabel(t *testing.T) {
	assert.NoError(t, SourceLabel("Camera"))
	assert.NoError(t, SourceLabel("Экран 1"))

	assert.Error(t, SourceLabel(""))
	assert.Error(t, SourceLabel("   "))
	assert.Error(t, SourceLabel(" padded"))
	assert.Error(t, SourceLabel("padded "))
	assert.Error(t, SourceLabel(strings.Repeat("x", 81)))

	// Length is counted in runes, not bytes.
	assert.NoError(t, SourceLabel(strings.Repeat("ы", 80)))
}
