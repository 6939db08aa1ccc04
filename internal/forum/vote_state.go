package forum

import (
	"encoding/json"
	"fmt"
)

// TargetKind is the kind of object a vote applies to.
type TargetKind string

const (
	KindQuestion TargetKind = "question"
	KindAnswer   TargetKind = "answer"
)

func (k TargetKind) Valid() bool {
	return k == KindQuestion || k == KindAnswer
}

// table is the relation holding the target's votes counter.
func (k TargetKind) table() string {
	if k == KindQuestion {
		return "questions"
	}
	return "answers"
}

// Direction is the polarity of a vote.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	default:
		return "", fmt.Errorf("%w: vote type must be \"up\" or \"down\"", ErrInvalid)
	}
}

func (d Direction) weight() int {
	if d == Up {
		return 1
	}
	return -1
}

// VoteState is a user's current vote on a target: none, up or down.
type VoteState string

const (
	NoVote    VoteState = ""
	VotedUp   VoteState = VoteState(Up)
	VotedDown VoteState = VoteState(Down)
)

// MarshalJSON renders NoVote as null.
func (s VoteState) MarshalJSON() ([]byte, error) {
	if s == NoVote {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

type Action int

const (
	ActionInsert Action = iota + 1
	ActionDelete
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionDelete:
		return "delete"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Step is the outcome of applying a requested direction to the current
// state: what to do with the vote row, the counter delta and the new state.
type Step struct {
	Action Action
	Delta  int
	Next   VoteState
}

// Transition implements the toggle/switch table:
//
//	none -> d     insert, +w(d)
//	d    -> d     delete, -w(d)
//	d    -> !d    update, +2w(!d)
func Transition(current VoteState, requested Direction) Step {
	switch current {
	case NoVote:
		return Step{Action: ActionInsert, Delta: requested.weight(), Next: VoteState(requested)}
	case VoteState(requested):
		return Step{Action: ActionDelete, Delta: -requested.weight(), Next: NoVote}
	default:
		return Step{Action: ActionUpdate, Delta: 2 * requested.weight(), Next: VoteState(requested)}
	}
}
