package sim

// ActorStats is one actor's share of the results snapshot. Rates are
// messages per 1000 ticks of elapsed virtual time.
type ActorStats struct {
	Sent         int     `json:"sent"`
	Received     int     `json:"received"`
	SentRate     float64 `json:"sent_rate"`
	ReceivedRate float64 `json:"received_rate"`
	Failures     int     `json:"failures,omitempty"`
}

// Stats is the aggregate results snapshot of a run.
type Stats struct {
	Actors        map[string]ActorStats `json:"actors"`
	TotalMessages int                   `json:"total_messages"`
	DurationMS    int64                 `json:"duration_ms"`
}
