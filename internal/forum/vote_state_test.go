package forum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		current   VoteState
		requested Direction
		want      Step
	}{
		{NoVote, Up, Step{Action: ActionInsert, Delta: 1, Next: VotedUp}},
		{NoVote, Down, Step{Action: ActionInsert, Delta: -1, Next: VotedDown}},
		{VotedUp, Up, Step{Action: ActionDelete, Delta: -1, Next: NoVote}},
		{VotedDown, Down, Step{Action: ActionDelete, Delta: 1, Next: NoVote}},
		{VotedUp, Down, Step{Action: ActionUpdate, Delta: -2, Next: VotedDown}},
		{VotedDown, Up, Step{Action: ActionUpdate, Delta: 2, Next: VotedUp}},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.requested), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.current, tt.requested))
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("up")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVoteStateJSON(t *testing.T) {
	out, err := json.Marshal(map[string]VoteState{"none": NoVote, "up": VotedUp})
	require.NoError(t, err)
	assert.JSONEq(t, `{"none":null,"up":"up"}`, string(out))
}
