package types

// Event types pushed over the dashboard stream.
const (
	EventInitialState = "initial_state"
	EventCallStarted  = "call_started"
	EventStatusUpdate = "call_status_update"
	EventTranscript   = "transcript_update"
	EventAudioMetrics = "audio_metrics"
	EventPong         = "pong"
)

// Event is the envelope delivered to dashboard observers. Which fields are
// populated depends on Type; unused fields are omitted on the wire.
type Event struct {
	Type   string     `json:"type"`
	CallID string     `json:"call_id,omitempty"`
	Status CallStatus `json:"status,omitempty"`

	// Full record, for call_started and call_status_update.
	Data *CallRecord `json:"data,omitempty"`

	// Incremental payloads. Transcript and metric events carry only the new
	// entry to bound message size.
	Message *TranscriptEntry   `json:"message,omitempty"`
	Metrics *AudioMetricSample `json:"metrics,omitempty"`

	// Snapshot payload, for initial_state only.
	ActiveCalls map[string]*CallRecord `json:"active_calls,omitempty"`
	CallHistory []*CallRecord          `json:"call_history,omitempty"`
	Stats       *Stats                 `json:"stats,omitempty"`
}

// Stats are the aggregate figures computed over the historical partition.
type Stats struct {
	TotalCalls          int     `json:"total_calls"`
	ActiveCalls         int     `json:"active_calls"`
	SuccessfulTransfers int     `json:"successful_transfers"`
	AverageDuration     float64 `json:"average_duration"`
	SuccessRate         float64 `json:"success_rate"`
	TotalDuration       float64 `json:"total_duration"`
}
