// Package channel translates between the backend's wire channel codes and
// the labels shown to operators.
package channel

import (
	"fmt"
	"strings"
)

// Display is a channel label as rendered in the UI.
type Display string

// Backend is a channel code as carried on the wire.
type Backend string

const (
	SMS   Display = "SMS"
	Email Display = "Email"
)

const (
	BackendSMS   Backend = "SMS"
	BackendEmail Backend = "EMAIL"
)

// Default is the channel used when nothing else resolves.
const Default = SMS

// ToBackend maps a display label to its wire code.
func ToBackend(d Display) Backend {
	if d == Email {
		return BackendEmail
	}
	return BackendSMS
}

// ToDisplay maps a wire code to its display label. Retired codes ("CHAT",
// "WHATSAPP") and anything unrecognized decode to SMS: persisted
// conversations still carry labels the backend no longer issues, and they
// must render rather than fail.
func ToDisplay(code string) Display {
	if code == string(BackendEmail) {
		return Email
	}
	return SMS
}

// Parse resolves operator-supplied channel input, accepting the display
// label and the wire code in any case ("Email", "EMAIL", "sms"...). Unlike
// ToDisplay, which must stay total for persisted records, typos in flags
// and config are an error, not silently SMS.
func Parse(s string) (Display, error) {
	switch strings.ToLower(s) {
	case "sms":
		return SMS, nil
	case "email":
		return Email, nil
	}
	return "", fmt.Errorf("unknown channel %q (valid: SMS, Email)", s)
}
