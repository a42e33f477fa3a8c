package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPhoneNumber(t *testing.T) {
	assert.True(t, ValidPhoneNumber("+15550001"))
	assert.True(t, ValidPhoneNumber("+442071838750"))

	assert.False(t, ValidPhoneNumber(""))
	assert.False(t, ValidPhoneNumber("15550001"))
	assert.False(t, ValidPhoneNumber("+0155"))
	assert.False(t, ValidPhoneNumber("+1555-0001"))
	assert.False(t, ValidPhoneNumber("+123456789012345678"))
}

func TestRoomName(t *testing.T) {
	assert.Equal(t, "outbound-call-abc", RoomName("abc"))
}

func TestTelURI(t *testing.T) {
	assert.Equal(t, "tel:+15550001", TelURI("+15550001"))
	assert.Equal(t, "tel:+15550001", TelURI("tel:+15550001"))
	assert.Equal(t, "sip:agent@host", TelURI("sip:agent@host"))
}
