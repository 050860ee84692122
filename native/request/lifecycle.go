package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

var ErrInvalidTransition = errors.New("request: invalid lifecycle transition")

// Status is the lifecycle stage of a position.
type Status uint8

const (
	StatusIdle Status = iota
	StatusRequestOpen
	StatusActive
	StatusRequestClose
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRequestOpen:
		return "request_open"
	case StatusActive:
		return "active"
	case StatusRequestClose:
		return "request_close"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Trigger moves a position between lifecycle stages.
type Trigger string

const (
	TriggerOpenSetup    Trigger = "open_setup"
	TriggerOpenCleanup  Trigger = "open_cleanup"
	TriggerCloseSetup   Trigger = "close_setup"
	TriggerCloseCleanup Trigger = "close_cleanup"
	TriggerClaim        Trigger = "claim"
)

func newLifecycle(initial Status) *stateless.StateMachine {
	machine := stateless.NewStateMachine(initial)
	machine.Configure(StatusIdle).
		Permit(TriggerOpenSetup, StatusRequestOpen)
	machine.Configure(StatusRequestOpen).
		Permit(TriggerOpenCleanup, StatusActive)
	machine.Configure(StatusActive).
		Permit(TriggerCloseSetup, StatusRequestClose).
		Permit(TriggerClaim, StatusClosed)
	machine.Configure(StatusRequestClose).
		Permit(TriggerCloseCleanup, StatusClosed)
	return machine
}

// Advance fires trigger from the given stage and returns the next one.
func Advance(ctx context.Context, from Status, trigger Trigger) (Status, error) {
	machine := newLifecycle(from)
	if err := machine.FireCtx(ctx, trigger); err != nil {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, from)
	}
	next, err := machine.State(ctx)
	if err != nil {
		return from, err
	}
	status, ok := next.(Status)
	if !ok {
		return from, ErrInvalidTransition
	}
	return status, nil
}
