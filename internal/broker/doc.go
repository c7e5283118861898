// Package broker provides in-memory fan-out delivery of room messages.
//
// Every accepted message is delivered to the room-wide topic
// (RoomTopic(roomID)); messages addressed to a participant (turn
// notifications carry the target id in metadata) are additionally delivered
// to that participant's topic. Participants may register a custom topic via
// RegisterParticipant; the last registration wins.
//
// Delivery semantics:
//
//   - Acceptance happens before broadcast: the room actor commits and
//     persists state first, and broadcast failures never roll it back.
//   - Sends are non-blocking; a slow subscriber loses events rather than
//     stalling the room.
//   - Message ids are deduplicated before fan-out, terminating
//     at-least-once redelivery from transports.
package broker
