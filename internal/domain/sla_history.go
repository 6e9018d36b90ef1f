package domain

import "time"

// SLAHistory is one breach cycle of a ticket. A new row is appended on every breach;
// the most recent row reflects the current cycle.
type SLAHistory struct {
	ID         string
	TicketID   string
	BreachedAt time.Time
	NotifiedAt *time.Time
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// Open reports whether the cycle has not been resolved yet.
func (h *SLAHistory) Open() bool {
	return h.ResolvedAt == nil
}
