// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// =============================================================================
// DELIVERY STATE MACHINE
// =============================================================================

// DeliveryState is where a user message is in its delivery lifecycle.
type DeliveryState string

const (
	StateComposed     DeliveryState = "composed"
	StateSending      DeliveryState = "sending"
	StateDelivered    DeliveryState = "delivered"
	StateFailed       DeliveryState = "failed"
	StateBackgrounded DeliveryState = "backgrounded"
)

// DeliveryEvent drives a transition.
type DeliveryEvent string

const (
	// EventDispatch starts the first attempt of a composed message.
	EventDispatch DeliveryEvent = "dispatch"
	// EventSucceed records that a reply was appended.
	EventSucceed DeliveryEvent = "succeed"
	// EventFail records a transport failure.
	EventFail DeliveryEvent = "fail"
	// EventDefer hands an in-flight attempt to the background registry.
	EventDefer DeliveryEvent = "defer"
	// EventRetry is the operator-triggered re-entry from failed.
	EventRetry DeliveryEvent = "retry"
)

type edge struct {
	from DeliveryState
	ev   DeliveryEvent
}

var transitions = map[edge]DeliveryState{
	{StateComposed, EventDispatch}:    StateSending,
	{StateSending, EventSucceed}:      StateDelivered,
	{StateSending, EventFail}:         StateFailed,
	{StateSending, EventDefer}:        StateBackgrounded,
	{StateBackgrounded, EventSucceed}: StateDelivered,
	{StateBackgrounded, EventFail}:    StateFailed,
	{StateFailed, EventRetry}:         StateSending,
}

// TransitionError is returned for an edge the state machine does not have.
type TransitionError struct {
	From  DeliveryState
	Event DeliveryEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("model: no transition from %q on %q", e.From, e.Event)
}

// Transition is the only way a delivery state changes.
func Transition(from DeliveryState, ev DeliveryEvent) (DeliveryState, error) {
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return from, &TransitionError{From: from, Event: ev}
	}
	return to, nil
}

// InFlight reports whether an attempt is running for a message in state s.
func (s DeliveryState) InFlight() bool {
	return s == StateSending || s == StateBackgrounded
}

// Terminal reports whether no event other than retry applies.
func (s DeliveryState) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}
