// Package notify delivers new-message notifications to conversation
// participants. Delivery is best-effort and fully decoupled from message
// persistence: a failed or dropped notification never fails the send.
package notify
