package utils

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidPhoneNumber reports whether number is a plausible E.164 number.
func ValidPhoneNumber(number string) bool {
	return e164.MatchString(number)
}

// RoomName derives the media session name for a call.
func RoomName(callID string) string {
	return "outbound-call-" + callID
}

// TelURI turns a phone number into the tel: form expected by SIP transfer.
func TelURI(number string) string {
	if strings.HasPrefix(number, "tel:") || strings.HasPrefix(number, "sip:") {
		return number
	}
	return "tel:" + number
}
