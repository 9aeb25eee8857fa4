// ABOUTME: Sentinel errors for the messaging service
// ABOUTME: Mapped to HTTP status codes at the API boundary

package messaging

import "errors"

// ErrAccessDenied is returned when the user is not an active participant of
// the conversation, or the conversation does not exist. The two cases are
// deliberately indistinguishable to callers.
var ErrAccessDenied = errors.New("access denied")

// ErrCannotReply is returned when the participant exists but can_reply is false.
var ErrCannotReply = errors.New("participant cannot reply")

// ErrValidation is returned for malformed or incomplete input.
var ErrValidation = errors.New("validation failed")
