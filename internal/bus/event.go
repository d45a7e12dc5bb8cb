package bus

import "time"

// Event is a single event published on the in-process bus.
//
// Kinds are dot-namespaced. The namespaces in use:
//
//	rt.*    - push events decoded off the realtime socket
//	convo.* - synchronizer state changes the UI should re-render for
//	link.*  - connection status transitions
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
