package domain

import "time"

// Status is the lifecycle state of a blood request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusFulfilled Status = "fulfilled"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusFulfilled}

// allowedTransitions is the complete edge set of the lifecycle graph.
// Rejected and fulfilled have no outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusFulfilled},
}

// transitionNotes are appended to AdminNotes when a transition is applied.
var transitionNotes = map[Status]string{
	StatusApproved:  "Request approved by admin",
	StatusRejected:  "Request rejected by admin",
	StatusFulfilled: "Request marked as fulfilled",
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves r to status to, stamping FulfilledDate and appending the
// admin note. r is left untouched when the edge is not allowed.
func (r *BloodRequest) Transition(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return &InvalidTransitionError{From: r.Status, To: to}
	}
	r.Status = to
	if to == StatusFulfilled {
		at := now
		r.FulfilledDate = &at
	}
	r.appendNote(transitionNotes[to])
	return nil
}

func (r *BloodRequest) appendNote(note string) {
	if note == "" {
		return
	}
	if r.AdminNotes == "" {
		r.AdminNotes = note
		return
	}
	r.AdminNotes = r.AdminNotes + "\n" + note
}
