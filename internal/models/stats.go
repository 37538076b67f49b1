package models

import "time"

// Event est une ligne de télémétrie d'usage (une requête servie).
type Event struct {
	ID           int64     `json:"id"`
	OccurredAt   time.Time `json:"occurredAt"`
	Route        string    `json:"route"`
	Feature      string    `json:"feature,omitempty"`
	Method       string    `json:"method"`
	Status       int       `json:"status"`
	DurationMs   int64     `json:"durationMs"`
	UserHash     string    `json:"userHash,omitempty"`
	ClientIPHash string    `json:"-"`
	RequestID    string    `json:"requestId,omitempty"`
}

// DailyAggregate est le résumé d'une journée d'événements.
type DailyAggregate struct {
	Day           string  `json:"day"`
	Route         string  `json:"route"`
	Count         int64   `json:"count"`
	ErrorCount    int64   `json:"errorCount"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	UniqueUsers   int64   `json:"uniqueUsers"`
}
