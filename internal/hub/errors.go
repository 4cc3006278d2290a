package hub

import "errors"

// Sentinel errors for the hub. These provide consistent, checkable errors for
// the local rejection paths; none of them is ever fatal to the process.
var (
	// ErrInvalidUsername reports a username shape violation.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrNameTaken reports a collision with a still-live session.
	ErrNameTaken = errors.New("username already exists")

	// ErrPayloadTooLarge reports a payload over the configured ceiling. The
	// transport enforces the real limit; this is the hub's defensive check.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Wire strings shown to the originating client, matching the reference
// deployment's registrationError messages.
const (
	msgUsernameLength  = "Username must be between 3 and 20 characters"
	msgUsernameCharset = "Username can only contain letters, numbers, and underscores"
	msgNameTaken       = "Username already exists"
	msgPayloadTooLarge = "Message exceeds the maximum allowed size"
)

// rejectionText maps a local rejection to the string delivered to the
// originator. Unknown errors fall back to their Go message.
func rejectionText(err error) string {
	switch {
	case errors.Is(err, errLengthViolation):
		return msgUsernameLength
	case errors.Is(err, errCharsetViolation):
		return msgUsernameCharset
	case errors.Is(err, ErrNameTaken):
		return msgNameTaken
	case errors.Is(err, ErrPayloadTooLarge):
		return msgPayloadTooLarge
	default:
		return err.Error()
	}
}
