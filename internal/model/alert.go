package model

// AlertLogEntry is one line of the user-visible history.
type AlertLogEntry struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Title     string `json:"title"`
	Message   string `json:"message"`
}
