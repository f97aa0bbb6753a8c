package matchdomain

// Status is the lifecycle state of a match.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusLobby      Status = "lobby"
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusEnded      Status = "ended"
)

// ActiveStatuses are the statuses in which a wallet counts as occupied.
var ActiveStatuses = []Status{StatusWaiting, StatusLobby, StatusStarting, StatusInProgress}

// TickStatuses are the statuses the tick processor sweeps.
var TickStatuses = []Status{StatusInProgress, StatusLobby, StatusStarting}

// OpenStatuses accept new players.
var OpenStatuses = []Status{StatusWaiting, StatusLobby}

var statusRank = map[Status]int{
	StatusWaiting:    0,
	StatusLobby:      1,
	StatusStarting:   2,
	StatusInProgress: 3,
	StatusCompleted:  4,
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusEnded
}

func (s Status) IsOpen() bool {
	return s == StatusWaiting || s == StatusLobby
}

// CanTransition reports whether from -> to respects the status ordering.
// Cancellation and ending are allowed from any non-terminal state, and a
// lobby may fall back to waiting when refunds shrink it.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusEnded {
		return true
	}
	if from == StatusLobby && to == StatusWaiting {
		return true
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

// LobbyStatus derives the status of an open match from its player count.
// A full match reports StatusStarting.
func LobbyStatus(playerCount, maxPlayers int) Status {
	switch {
	case playerCount <= 0:
		return StatusCancelled
	case playerCount == 1:
		return StatusWaiting
	case playerCount >= maxPlayers:
		return StatusStarting
	default:
		return StatusLobby
	}
}
