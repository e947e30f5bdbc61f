package domain

// transitions lists every allowed status change. Terminal statuses have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusDeclined, StatusCancelled, StatusBlocked},
	StatusAccepted: {StatusDisconnected, StatusBlocked},
}

// CanTransition reports whether a connection may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusDisconnected, StatusBlocked:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status holds the pair's single live slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}
