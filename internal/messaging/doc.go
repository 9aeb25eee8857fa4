// Package messaging implements the conversation subsystem: conversations and
// their participants, messages with read-state, archival, content search and
// reusable templates.
//
// Access control runs through the Guard before any read or mutation. Read
// state follows a read-on-fetch model: listing messages bulk-marks the whole
// conversation read for the viewer, and an explicit mark-read operation
// performs the identical update without fetching. Notification fan-out after
// a send is fire-and-forget through the notify package and never affects the
// send result.
package messaging
