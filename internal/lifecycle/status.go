// Package lifecycle holds the borrow request / borrow state machines and the
// derived display fields. Server handlers and the portal client both use it,
// so every screen computes penalty and wording the same way.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s RequestStatus) Terminal() bool { return s == StatusApproved || s == StatusRejected }

type BorrowState string

const (
	StateActive          BorrowState = "active"
	StateReturnRequested BorrowState = "return_requested"
	StateReturned        BorrowState = "returned"
)

func (s BorrowState) Terminal() bool { return s == StateReturned }

type Transition string

const (
	Approve         Transition = "approve"
	Reject          Transition = "reject"
	RequestReturn   Transition = "return_request"
	AcknowledgeBack Transition = "return_ack"
)

var ErrInvalidTransition = errors.New("invalid transition")

var requestTable = map[RequestStatus]map[Transition]RequestStatus{
	StatusPending: {
		Approve: StatusApproved,
		Reject:  StatusRejected,
	},
}

var borrowTable = map[BorrowState]map[Transition]BorrowState{
	StateActive: {
		RequestReturn: StateReturnRequested,
	},
	StateReturnRequested: {
		AcknowledgeBack: StateReturned,
	},
}

func NextRequestStatus(from RequestStatus, t Transition) (RequestStatus, error) {
	if to, ok := requestTable[from][t]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: request %s --%s-->", ErrInvalidTransition, from, t)
}

func NextBorrowState(from BorrowState, t Transition) (BorrowState, error) {
	if to, ok := borrowTable[from][t]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: borrow %s --%s-->", ErrInvalidTransition, from, t)
}

// StateOf: returned_at が入っていれば返却済み（return_requested より優先）
func StateOf(returnRequested bool, returnedAt *time.Time) BorrowState {
	switch {
	case returnedAt != nil:
		return StateReturned
	case returnRequested:
		return StateReturnRequested
	default:
		return StateActive
	}
}

func CanRequestReturn(returnRequested bool, returnedAt *time.Time) bool {
	return StateOf(returnRequested, returnedAt) == StateActive
}

func CanAcknowledge(returnRequested bool, returnedAt *time.Time) bool {
	return StateOf(returnRequested, returnedAt) == StateReturnRequested
}
