// Package events defines the typed event contract shared between the
// conversation core and its observers.
//
// Event kinds are grouped by receiver-facing namespaces. The only namespace
// currently emitted is turn_state.*:
//
//   - StateChanged (turn_state.changed): the conversation moved into one of
//     idle, listening, processing or speaking.
//
// Transitions are emitted, never queried. The latest emitted state is the
// ground truth for any observer; observers that fall behind may drop older
// transitions without losing correctness.
package events
