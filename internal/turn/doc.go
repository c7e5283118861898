// Package turn implements the pluggable turn-taking policies for rooms.
//
// A Strategy is a pure state machine over State (holder, sorted agent
// roster, epoch). It never schedules timers or touches storage; the room
// actor calls it inside its own critical section and runs the returned
// Decision's side effects (timer scheduling, turn notifications).
//
// Two strategies ship with the package:
//
//   - FreeForm: no restrictions, no turn ownership
//   - RoundRobin: agents rotate in ascending-id order with a turn timeout;
//     humans post freely and every human message restarts the rotation
//
// The epoch counter is the defense against the timer/cancellation race: a
// scheduled timeout captures the epoch it was created under, and the room
// actor discards any firing whose epoch no longer matches.
package turn
