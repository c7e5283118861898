// ABOUTME: Sentinel errors for room operations
// ABOUTME: All failures are returned synchronously to callers, never raised in the background

package chat

import "errors"

// ErrRoomNotFound indicates the requested room is not known to the service.
var ErrRoomNotFound = errors.New("room not found")

// ErrNotMember indicates the sender is not a member of the room.
var ErrNotMember = errors.New("sender is not a room member")

// ErrTurnViolation indicates the active turn strategy rejected the post.
var ErrTurnViolation = errors.New("not the sender's turn")

// ErrRoomClosed indicates the room has been shut down.
var ErrRoomClosed = errors.New("room is closed")

// ErrParse indicates message content could not be scanned for mentions.
// It is never surfaced to callers: posting degrades to accepting the
// message without references.
var ErrParse = errors.New("malformed message content")
