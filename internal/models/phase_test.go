package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseLabelCarriesRoundNumber(t *testing.T) {
	assert.Equal(t, "ROUND_2_TASKS", PhaseTaskAndKill.Label(2))
	assert.Equal(t, "ROUND_1_VOTING", PhaseVoting.Label(1))
	assert.Equal(t, "IDLE", PhaseIdle.Label(3), "non-round phases ignore the round")
	assert.Equal(t, "GAME_END", PhaseGameEnd.Label(1))
}

func TestInRound(t *testing.T) {
	assert.True(t, PhaseTaskAndKill.InRound())
	assert.True(t, PhaseDiscussion.InRound())
	assert.True(t, PhaseVoting.InRound())
	assert.False(t, PhaseIdle.InRound())
	assert.False(t, PhaseWaitingForPlayers.InRound())
	assert.False(t, PhaseGameEnd.InRound())
}

func TestAlivePlayersKeepJoinOrder(t *testing.T) {
	g := NewGame()
	for _, id := range []string{"c", "a", "b"} {
		g.Players[id] = &Player{ID: id, IsAlive: true}
		g.JoinOrder = append(g.JoinOrder, id)
	}
	g.Players["a"].IsAlive = false

	var ids []string
	for _, p := range g.AlivePlayers() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
	assert.Equal(t, 2, g.AliveCount())
}
