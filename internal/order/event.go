package order

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind tags the concrete payload carried by an Event.
type EventKind int

const (
	EventAccepted EventKind = iota
	EventFilled
	EventCanceled
	EventRejected
	EventState
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventFilled:
		return "filled"
	case EventCanceled:
		return "canceled"
	case EventRejected:
		return "rejected"
	case EventState:
		return "state"
	default:
		return "unknown"
	}
}

// MarshalJSON renders an EventKind as its lowercase name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the lowercase names produced by MarshalJSON.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "accepted":
		*k = EventAccepted
	case "filled":
		*k = EventFilled
	case "canceled":
		*k = EventCanceled
	case "rejected":
		*k = EventRejected
	case "state":
		*k = EventState
	default:
		return fmt.Errorf("order: unknown event kind %q", str)
	}
	return nil
}

// StateSnapshot is a consistent copy of both side sequences, in their
// priority order, returned by GetState.
type StateSnapshot struct {
	Buy  []*Order `json:"buy"`
	Sell []*Order `json:"sell"`
}

// Event is a tagged record describing one thing the engine did while
// processing a single command. Only the field matching Kind is meaningful;
// the others are left at their zero value.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// EventAccepted, EventFilled, EventCanceled
	Order *Order `json:"order,omitempty"`

	// EventFilled: Order is the aggressor's (or aggressor-portion's) side of
	// the trade, Counterpart is the resting order it matched, recorded as it
	// stood before this match (its pre-trade quantity, not the amount
	// consumed from it).
	Counterpart *Order `json:"counterpart,omitempty"`

	// EventCanceled
	CanceledID string `json:"canceled_id,omitempty"`

	// EventRejected
	Reason string `json:"reason,omitempty"`

	// EventState
	State StateSnapshot `json:"state,omitempty"`
}

func Accepted(ts time.Time, o *Order) Event {
	return Event{Kind: EventAccepted, Timestamp: ts, Order: o}
}

func Filled(ts time.Time, aggressor, counterpart *Order) Event {
	return Event{Kind: EventFilled, Timestamp: ts, Order: aggressor, Counterpart: counterpart}
}

func Canceled(ts time.Time, o *Order) Event {
	return Event{Kind: EventCanceled, Timestamp: ts, Order: o, CanceledID: o.ID.String()}
}

func Rejected(ts time.Time, reason string) Event {
	return Event{Kind: EventRejected, Timestamp: ts, Reason: reason}
}

func State(ts time.Time, snapshot StateSnapshot) Event {
	return Event{Kind: EventState, Timestamp: ts, State: snapshot}
}
