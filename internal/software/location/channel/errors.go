package channel

import "errors"

// Wire messages of the "error" event.
const (
	MsgUnauthorized    = "Unauthorized access"
	MsgSharingDisabled = "Location sharing is disabled"
	MsgServerError     = "Server error"
	MsgInvalidLocation = "Invalid location data"
	MsgUnknownEvent    = "Unknown event"
)

var (
	ErrUnauthorizedIdentity = errors.New("channel: identity is not an authorized seller")
	ErrSharingDisabled      = errors.New("channel: location sharing is disabled")
	ErrServerFault          = errors.New("channel: server fault")
	ErrInvalidLocation      = errors.New("channel: invalid location data")
	ErrUnknownEvent         = errors.New("channel: unknown event")
)

// Message maps a rejection to the text sent to the client. Anything outside
// the taxonomy is reported as a server error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorizedIdentity):
		return MsgUnauthorized
	case errors.Is(err, ErrSharingDisabled):
		return MsgSharingDisabled
	case errors.Is(err, ErrInvalidLocation):
		return MsgInvalidLocation
	case errors.Is(err, ErrUnknownEvent):
		return MsgUnknownEvent
	default:
		return MsgServerError
	}
}
