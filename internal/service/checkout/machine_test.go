package checkout

import (
	"errors"
	"testing"
)

func TestMachineHappyPath(t *testing.T) {
	var m Machine
	if m.State() != StateCollectingAddresses {
		t.Fatalf("unexpected initial state %s", m.State())
	}
	steps := []struct {
		ev   Event
		want State
	}{
		{EventAddressesSet, StateAddressesSet},
		{EventShippingSelected, StateShippingSelected},
		{EventShippingAttached, StateShippingSelected},
		{EventPaymentInitialized, StatePaymentInitialized},
		{EventCompleted, StateCompleted},
		{EventReset, StateCollectingAddresses},
	}
	for _, step := range steps {
		if err := m.Apply(step.ev); err != nil {
			t.Fatalf("apply %s: %v", step.ev, err)
		}
		if m.State() != step.want {
			t.Fatalf("after %s expected %s, got %s", step.ev, step.want, m.State())
		}
	}
}

func TestMachinePaymentRequiresAttachedShipping(t *testing.T) {
	var m Machine
	_ = m.Apply(EventAddressesSet)
	_ = m.Apply(EventShippingSelected)

	err := m.Apply(EventPaymentInitialized)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if terr.From != StateShippingSelected || terr.Reason == "" {
		t.Fatalf("unexpected error %+v", terr)
	}
	if m.State() != StateShippingSelected {
		t.Fatalf("failed transition must not move the machine")
	}

	_ = m.Apply(EventShippingAttached)
	_ = m.Apply(EventShippingSelected)
	if m.ShippingAttached() {
		t.Fatalf("changing the selection must detach shipping")
	}
}

func TestMachineRejectsSkippingSteps(t *testing.T) {
	cases := []struct {
		name  string
		setup []Event
		ev    Event
	}{
		{name: "shipping before addresses", ev: EventShippingSelected},
		{name: "payment before shipping", setup: []Event{EventAddressesSet}, ev: EventPaymentInitialized},
		{name: "complete before payment", setup: []Event{EventAddressesSet, EventShippingSelected, EventShippingAttached}, ev: EventCompleted},
		{name: "edit after completion", setup: []Event{EventAddressesSet, EventShippingSelected, EventShippingAttached, EventPaymentInitialized, EventCompleted}, ev: EventAddressesSet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m Machine
			for _, ev := range tc.setup {
				if err := m.Apply(ev); err != nil {
					t.Fatalf("setup %s: %v", ev, err)
				}
			}
			var terr *TransitionError
			if err := m.Apply(tc.ev); !errors.As(err, &terr) {
				t.Fatalf("expected TransitionError, got %v", err)
			}
		})
	}
}

func TestMachineCheckDoesNotMove(t *testing.T) {
	var m Machine
	if err := m.Check(EventCompleted); err == nil {
		t.Fatalf("completion from a fresh machine must be rejected")
	}
	if err := m.Check(EventAddressesSet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateCollectingAddresses {
		t.Fatalf("check must not change state, got %s", m.State())
	}
}

func TestMachinePaymentResumedFromAnyOpenState(t *testing.T) {
	setups := map[string][]Event{
		"fresh":             nil,
		"addresses edited":  {EventAddressesSet},
		"shipping selected": {EventAddressesSet, EventShippingSelected},
		"already started":   {EventAddressesSet, EventShippingSelected, EventShippingAttached, EventPaymentInitialized},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			var m Machine
			for _, ev := range setup {
				if err := m.Apply(ev); err != nil {
					t.Fatalf("setup %s: %v", ev, err)
				}
			}
			if err := m.Apply(EventPaymentResumed); err != nil {
				t.Fatalf("resume: %v", err)
			}
			if m.State() != StatePaymentInitialized || !m.ShippingAttached() {
				t.Fatalf("expected payment_initialized with shipping attached, got %s", m.State())
			}
			if err := m.Apply(EventCompleted); err != nil {
				t.Fatalf("complete after resume: %v", err)
			}
		})
	}

	var done Machine
	for _, ev := range []Event{EventAddressesSet, EventShippingSelected, EventShippingAttached, EventPaymentInitialized, EventCompleted} {
		_ = done.Apply(ev)
	}
	var terr *TransitionError
	if err := done.Apply(EventPaymentResumed); !errors.As(err, &terr) {
		t.Fatalf("resume after completion must be rejected, got %v", err)
	}
}
