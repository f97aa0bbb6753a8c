package matchdomain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v int64) *int64 { return &v }

var resolveNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func player(addr string, lastRound int, rt *int64) *Player {
	return &Player{
		Address:         addr,
		Status:          PlayerAlive,
		JoinedAt:        resolveNow.Add(-time.Hour),
		LastActionRound: lastRound,
		ResponseTimeMs:  rt,
	}
}

func playerSet(ps ...*Player) map[string]*Player {
	out := make(map[string]*Player, len(ps))
	for _, p := range ps {
		out[p.Address] = p
	}
	return out
}

func TestResolveRound(t *testing.T) {
	tests := []struct {
		name           string
		round          int
		players        map[string]*Player
		wantEliminated []string
		wantCompleted  bool
		wantWinner     string
		wantSelection  WinnerSelection
		wantNextRound  int
	}{
		{
			name:  "slowest of two actors is eliminated",
			round: 1,
			players: playerSet(
				player("X", 1, ms(400)),
				player("Y", 1, ms(900)),
				player("Z", 1, ms(650)),
			),
			wantEliminated: []string{"Y"},
			wantNextRound:  2,
		},
		{
			name:  "two actors and an idle player only eliminates the slowest actor",
			round: 2,
			players: playerSet(
				player("A", 2, ms(300)),
				player("B", 2, ms(310)),
				player("C", 1, nil),
			),
			wantEliminated: []string{"B"},
			wantNextRound:  3,
		},
		{
			name:  "nobody acted eliminates every idle player and picks a fallback winner",
			round: 3,
			players: playerSet(
				player("A", 2, ms(500)),
				player("B", 2, ms(200)),
				player("C", 1, ms(100)),
			),
			wantEliminated: []string{"A", "C"},
			wantCompleted:  true,
			wantWinner:     "B",
			wantSelection:  SelectionFurthestRound,
		},
		{
			name:  "single actor survives idle players and wins",
			round: 4,
			players: playerSet(
				player("A", 4, ms(700)),
				player("B", 3, nil),
				player("C", 3, nil),
			),
			wantEliminated: []string{"B", "C"},
			wantCompleted:  true,
			wantWinner:     "A",
			wantSelection:  SelectionLastAlive,
		},
		{
			name:  "single actor alone is the winner without elimination",
			round: 5,
			players: playerSet(
				player("A", 5, ms(700)),
			),
			wantCompleted: true,
			wantWinner:    "A",
			wantSelection: SelectionLastAlive,
		},
		{
			name:  "equal response times eliminate the lexicographically smallest address",
			round: 1,
			players: playerSet(
				player("bbb", 1, ms(500)),
				player("aaa", 1, ms(500)),
				player("ccc", 1, ms(100)),
			),
			wantEliminated: []string{"aaa"},
			wantNextRound:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResolveRound(tt.round, tt.players, resolveNow)

			var got []string
			for _, e := range out.Eliminated {
				got = append(got, e.Address)
				assert.Equal(t, tt.round, e.Round)
				assert.Equal(t, PlayerEliminated, tt.players[e.Address].Status)
			}
			if diff := cmp.Diff(tt.wantEliminated, got); diff != "" {
				t.Errorf("eliminated mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantCompleted, out.Completed)
			assert.Equal(t, tt.wantWinner, out.Winner)
			assert.Equal(t, tt.wantSelection, out.WinnerSelection)
			assert.Equal(t, tt.wantNextRound, out.NextRound)
			if tt.wantWinner != "" {
				assert.True(t, tt.players[tt.wantWinner].Alive())
			}
		})
	}
}

func TestResolveRoundClearsSurvivorResponseTimes(t *testing.T) {
	players := playerSet(
		player("X", 1, ms(400)),
		player("Y", 1, ms(900)),
		player("Z", 1, ms(500)),
	)

	out := ResolveRound(1, players, resolveNow)

	require.Equal(t, []string{"X", "Z"}, out.Survivors)
	assert.Nil(t, players["X"].ResponseTimeMs)
	assert.Nil(t, players["Z"].ResponseTimeMs)
	assert.Equal(t, int64(900), *players["Y"].ResponseTimeMs)
	assert.Equal(t, ReasonSlowestResponse, players["Y"].EliminationReason)
}

func TestResolveRoundIsDeterministic(t *testing.T) {
	build := func() map[string]*Player {
		return playerSet(
			player("q", 2, ms(250)),
			player("m", 2, ms(250)),
			player("z", 2, ms(250)),
			player("a", 2, ms(120)),
		)
	}

	first := ResolveRound(2, build(), resolveNow)
	for i := 0; i < 50; i++ {
		again := ResolveRound(2, build(), resolveNow)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("outcome changed on run %d (-first +again):\n%s", i, diff)
		}
	}
	assert.Equal(t, "m", first.Eliminated[0].Address)
}

func TestResolveRoundWithoutPlayers(t *testing.T) {
	out := ResolveRound(1, map[string]*Player{}, resolveNow)
	assert.True(t, out.Completed)
	assert.Empty(t, out.Winner)
}

func TestSelectWinner(t *testing.T) {
	early := resolveNow.Add(-2 * time.Hour)

	tests := []struct {
		name          string
		round         int
		players       map[string]*Player
		wantWinner    string
		wantSelection WinnerSelection
	}{
		{
			name:  "fastest final round responder",
			round: 3,
			players: playerSet(
				player("A", 3, ms(450)),
				player("B", 3, ms(300)),
				player("C", 2, ms(10)),
			),
			wantWinner:    "B",
			wantSelection: SelectionFastestFinalRound,
		},
		{
			name:  "furthest round beats faster earlier response",
			round: 4,
			players: playerSet(
				player("A", 3, ms(900)),
				player("B", 2, ms(100)),
			),
			wantWinner:    "A",
			wantSelection: SelectionFurthestRound,
		},
		{
			name:  "missing response time sorts last",
			round: 4,
			players: playerSet(
				player("A", 2, nil),
				player("B", 2, ms(800)),
			),
			wantWinner:    "B",
			wantSelection: SelectionFurthestRound,
		},
		{
			name:  "earliest join breaks a full tie",
			round: 1,
			players: func() map[string]*Player {
				a := player("A", 0, nil)
				b := player("B", 0, nil)
				b.JoinedAt = early
				return playerSet(a, b)
			}(),
			wantWinner:    "B",
			wantSelection: SelectionFurthestRound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, selection := SelectWinner(tt.round, tt.players)
			assert.Equal(t, tt.wantWinner, winner)
			assert.Equal(t, tt.wantSelection, selection)
		})
	}
}
