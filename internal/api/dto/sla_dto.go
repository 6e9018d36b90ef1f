package dto

import "time"

// SLAStatusResponse reports a ticket's SLA standing.
type SLAStatusResponse struct {
	TicketID    string     `json:"ticket_id"`
	State       string     `json:"state"`
	Breached    bool       `json:"breached"`
	Notified    bool       `json:"notified"`
	RemainingMS int64      `json:"remaining_ms"`
	Deadline    *time.Time `json:"deadline"`
}

// SLAHistoryResponse is one breach cycle.
type SLAHistoryResponse struct {
	ID         string     `json:"id"`
	TicketID   string     `json:"ticket_id"`
	BreachedAt time.Time  `json:"breached_at"`
	NotifiedAt *time.Time `json:"notified_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// ScanReportResponse summarizes a manual scan.
type ScanReportResponse struct {
	Breached int `json:"breached"`
	Notified int `json:"notified"`
	Warned   int `json:"warned"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
