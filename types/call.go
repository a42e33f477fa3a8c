package types

import "time"

// CallStatus is the lifecycle state of a call as shown on the dashboard.
type CallStatus string

const (
	StatusIdle         CallStatus = "idle"
	StatusDialing      CallStatus = "dialing"
	StatusRinging      CallStatus = "ringing"
	StatusConnected    CallStatus = "connected"
	StatusTalking      CallStatus = "talking"
	StatusOnHold       CallStatus = "on_hold"
	StatusTransferring CallStatus = "transferring"
	StatusEnded        CallStatus = "ended"
	StatusFailed       CallStatus = "failed"
)

// Terminal reports whether the status accepts no further mutation.
func (s CallStatus) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// SpeakerRole identifies who produced a transcript entry.
type SpeakerRole string

const (
	SpeakerAgent    SpeakerRole = "agent"
	SpeakerCustomer SpeakerRole = "customer"
)

// CallOutcome is the terminal disposition of a completed call.
type CallOutcome string

const (
	OutcomeTransferred CallOutcome = "transferred"
	OutcomeHungUp      CallOutcome = "hung_up"
	OutcomeScheduled   CallOutcome = "scheduled"
	OutcomeRejected    CallOutcome = "rejected"
)

// TranscriptEntry is a single utterance. Entries are immutable once appended.
type TranscriptEntry struct {
	ID         string      `json:"id"`
	Speaker    SpeakerRole `json:"speaker"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	Confidence float64     `json:"confidence"`
	Sentiment  string      `json:"sentiment"`
	Emotion    string      `json:"emotion,omitempty"`
}

// AudioMetricSample is one point of the live audio telemetry stream.
type AudioMetricSample struct {
	Timestamp            time.Time `json:"timestamp"`
	AgentVolume          float64   `json:"agent_volume"`
	CustomerVolume       float64   `json:"customer_volume"`
	AgentSpeaking        bool      `json:"agent_speaking"`
	CustomerSpeaking     bool      `json:"customer_speaking"`
	BackgroundNoiseLevel float64   `json:"background_noise_level"`
}

// SentimentScores holds the positive/neutral/negative percentage split.
// The three values sum to 100.
type SentimentScores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// NeutralSentiment is the default split before any analysis has run.
func NeutralSentiment() SentimentScores {
	return SentimentScores{Positive: 0, Neutral: 100, Negative: 0}
}

// MaxAudioMetrics bounds the retained audio telemetry window per call.
const MaxAudioMetrics = 100

// CallRecord is the complete state of one call attempt.
type CallRecord struct {
	CallID          string              `json:"call_id"`
	PhoneNumber     string              `json:"phone_number"`
	CustomerName    string              `json:"customer_name"`
	Status          CallStatus          `json:"status"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         *time.Time          `json:"end_time,omitempty"`
	Duration        float64             `json:"duration"`
	Transcript      []TranscriptEntry   `json:"transcript"`
	AudioMetrics    []AudioMetricSample `json:"audio_metrics"`
	SentimentScores SentimentScores     `json:"sentiment_scores"`
	ObjectionsCount int                 `json:"objections_count"`
	Objections      []string            `json:"objections"`
	QuestionsAsked  int                 `json:"questions_asked"`
	TransferTo      string              `json:"transfer_to,omitempty"`
	Outcome         CallOutcome         `json:"outcome,omitempty"`
	RecordingURL    string              `json:"recording_url,omitempty"`
	RoomName        string              `json:"room_name"`
}

// RefreshDuration recomputes Duration from start, end and now.
// Duration is always derived, never stored independently.
func (c *CallRecord) RefreshDuration(now time.Time) {
	end := now
	if c.EndTime != nil {
		end = *c.EndTime
	}
	d := end.Sub(c.StartTime).Seconds()
	if d < 0 {
		d = 0
	}
	c.Duration = d
}

// Clone returns a copy safe to hand to observers while the original
// keeps mutating under the registry lock.
func (c *CallRecord) Clone() *CallRecord {
	cp := *c
	if c.EndTime != nil {
		end := *c.EndTime
		cp.EndTime = &end
	}
	cp.Transcript = append([]TranscriptEntry(nil), c.Transcript...)
	cp.AudioMetrics = append([]AudioMetricSample(nil), c.AudioMetrics...)
	cp.Objections = append([]string(nil), c.Objections...)
	return &cp
}

// StatusPatch carries the optional field updates accepted alongside a status
// change. Only fields enumerated here can be patched; nil means "leave as is".
type StatusPatch struct {
	CustomerName    *string
	TransferTo      *string
	Outcome         *CallOutcome
	RecordingURL    *string
	SentimentScores *SentimentScores
	ObjectionsCount *int
	Objections      []string
	QuestionsAsked  *int
}

// Apply copies the set fields onto the record.
func (p *StatusPatch) Apply(c *CallRecord) {
	if p == nil {
		return
	}
	if p.CustomerName != nil {
		c.CustomerName = *p.CustomerName
	}
	if p.TransferTo != nil {
		c.TransferTo = *p.TransferTo
	}
	if p.Outcome != nil {
		c.Outcome = *p.Outcome
	}
	if p.RecordingURL != nil {
		c.RecordingURL = *p.RecordingURL
	}
	if p.SentimentScores != nil {
		c.SentimentScores = *p.SentimentScores
	}
	if p.ObjectionsCount != nil {
		c.ObjectionsCount = *p.ObjectionsCount
	}
	if p.Objections != nil {
		c.Objections = append([]string(nil), p.Objections...)
	}
	if p.QuestionsAsked != nil {
		c.QuestionsAsked = *p.QuestionsAsked
	}
}
