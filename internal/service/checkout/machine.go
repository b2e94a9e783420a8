package checkout

import (
	"fmt"
	"sync"
)

type State string

const (
	StateCollectingAddresses State = "collecting_addresses"
	StateAddressesSet        State = "addresses_set"
	StateShippingSelected    State = "shipping_selected"
	StatePaymentInitialized  State = "payment_initialized"
	StateCompleted           State = "completed"
)

type Event string

const (
	EventAddressesSet       Event = "addresses_set"
	EventShippingSelected   Event = "shipping_selected"
	EventShippingAttached   Event = "shipping_attached"
	EventPaymentInitialized Event = "payment_initialized"
	EventCompleted          Event = "completed"
	EventReset              Event = "reset"
	// EventPaymentResumed re-enters StatePaymentInitialized for a payment the
	// provider already holds, whatever step the form is on.
	EventPaymentResumed Event = "payment_resumed"
)

// TransitionError reports an event that is not valid in the current state.
type TransitionError struct {
	From   State
	Event  Event
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("checkout: cannot apply %s in state %s: %s", e.Event, e.From, e.Reason)
	}
	return fmt.Sprintf("checkout: cannot apply %s in state %s", e.Event, e.From)
}

var transitions = map[State]map[Event]State{
	StateCollectingAddresses: {
		EventAddressesSet:   StateAddressesSet,
		EventPaymentResumed: StatePaymentInitialized,
	},
	StateAddressesSet: {
		EventAddressesSet:     StateAddressesSet,
		EventShippingSelected: StateShippingSelected,
		EventPaymentResumed:   StatePaymentInitialized,
	},
	StateShippingSelected: {
		EventAddressesSet:       StateAddressesSet,
		EventShippingSelected:   StateShippingSelected,
		EventShippingAttached:   StateShippingSelected,
		EventPaymentInitialized: StatePaymentInitialized,
		EventPaymentResumed:     StatePaymentInitialized,
	},
	StatePaymentInitialized: {
		EventAddressesSet:   StateAddressesSet,
		EventCompleted:      StateCompleted,
		EventPaymentResumed: StatePaymentInitialized,
	},
	StateCompleted: {},
}

// Machine tracks one checkout. The zero value starts in StateCollectingAddresses.
type Machine struct {
	mu       sync.Mutex
	state    State
	attached bool
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

// ShippingAttached reports whether the selected method is on the cart.
func (m *Machine) ShippingAttached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}

func (m *Machine) current() State {
	if m.state == "" {
		return StateCollectingAddresses
	}
	return m.state
}

// Check reports whether ev would be accepted, without applying it.
func (m *Machine) Check(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.next(ev)
	return err
}

// Apply moves the machine along ev or returns *TransitionError and leaves it unchanged.
func (m *Machine) Apply(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev == EventReset {
		m.state = StateCollectingAddresses
		m.attached = false
		return nil
	}
	next, err := m.next(ev)
	if err != nil {
		return err
	}

	switch ev {
	case EventShippingAttached, EventPaymentResumed:
		m.attached = true
	case EventAddressesSet, EventShippingSelected:
		m.attached = false
	}
	m.state = next
	return nil
}

func (m *Machine) next(ev Event) (State, error) {
	from := m.current()
	if ev == EventReset {
		return StateCollectingAddresses, nil
	}
	next, ok := transitions[from][ev]
	if !ok {
		return "", &TransitionError{From: from, Event: ev}
	}
	if ev == EventPaymentInitialized && !m.attached {
		return "", &TransitionError{From: from, Event: ev, Reason: "shipping method not attached"}
	}
	return next, nil
}
