// Package registry holds the authoritative in-memory state for all calls and
// fans every mutation out to connected dashboard observers.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/telephony"
	"github.com/dialwatch/dialwatch/types"
	"github.com/dialwatch/dialwatch/utils"
)

// snapshotHistory is how many historical records a new observer receives.
const snapshotHistory = 50

// Observer receives every broadcast event. Send must not block: a slow or
// gone observer returns an error and is dropped from the membership set.
type Observer interface {
	Send(ev types.Event) error
}

// Registry owns the active and historical call partitions plus the observer
// set. A call id lives in exactly one partition at a time; records move
// active -> historical exactly once, on reaching a terminal status.
type Registry struct {
	log        *zap.Logger
	driver     telephony.Driver
	dispatcher telephony.Dispatcher
	agentName  string
	trunk      telephony.TrunkConfig
	now        func() time.Time

	mu        sync.Mutex
	active    map[string]*types.CallRecord
	history   []*types.CallRecord
	observers map[Observer]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTrunk sets the trunk configuration attached to dispatched jobs.
func WithTrunk(trunk telephony.TrunkConfig) Option {
	return func(r *Registry) { r.trunk = trunk }
}

// New builds a registry. driver handles transfer/teardown, dispatcher starts
// the agent job that performs the actual dialing.
func New(log *zap.Logger, driver telephony.Driver, dispatcher telephony.Dispatcher, agentName string, opts ...Option) *Registry {
	r := &Registry{
		log:        log,
		driver:     driver,
		dispatcher: dispatcher,
		agentName:  agentName,
		now:        time.Now,
		active:     make(map[string]*types.CallRecord),
		observers:  make(map[Observer]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers the observer and delivers its snapshot. Registration and
// snapshot happen under the registry lock, so no broadcast can interleave
// between them: the snapshot plus subsequent events form a consistent view.
func (r *Registry) Connect(ob Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers[ob] = struct{}{}
	r.log.Info("dashboard connected", zap.Int("observers", len(r.observers)))

	if err := ob.Send(r.snapshotLocked()); err != nil {
		delete(r.observers, ob)
		r.log.Warn("dropping observer, snapshot failed", zap.Error(err))
	}
}

// Disconnect removes the observer. Removing an unknown observer is a no-op.
func (r *Registry) Disconnect(ob Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.observers[ob]; !ok {
		return
	}
	delete(r.observers, ob)
	r.log.Info("dashboard disconnected", zap.Int("observers", len(r.observers)))
}

// ObserverCount returns the current number of connected observers.
func (r *Registry) ObserverCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// StartCall allocates a call record, dispatches the agent job and registers
// the call as active. On dispatch failure nothing is registered and no event
// is broadcast, so observers never see the rolled-back call.
func (r *Registry) StartCall(ctx context.Context, phoneNumber, customerName, transferTo string) (*types.CallRecord, string, error) {
	callID := uuid.NewString()
	call := &types.CallRecord{
		CallID:          callID,
		PhoneNumber:     phoneNumber,
		CustomerName:    customerName,
		Status:          types.StatusDialing,
		StartTime:       r.now(),
		Transcript:      []types.TranscriptEntry{},
		AudioMetrics:    []types.AudioMetricSample{},
		SentimentScores: types.NeutralSentiment(),
		Objections:      []string{},
		TransferTo:      transferTo,
		RoomName:        utils.RoomName(callID),
	}

	metadata := map[string]string{
		"phone_number": phoneNumber,
		"transfer_to":  transferTo,
		"call_id":      callID,
	}
	if r.trunk.TrunkID != "" {
		metadata["trunk_id"] = r.trunk.TrunkID
	}

	dispatchID, err := r.dispatcher.DispatchAgentJob(ctx, r.agentName, call.RoomName, metadata)
	if err != nil {
		r.log.Error("agent dispatch failed",
			zap.String("call_id", callID),
			zap.Error(err))
		return nil, "", &DelegatedError{Op: "dispatch agent job", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[callID] = call
	r.broadcastLocked(types.Event{
		Type:   types.EventCallStarted,
		CallID: callID,
		Data:   call.Clone(),
	})

	r.log.Info("call started",
		zap.String("call_id", callID),
		zap.String("room", call.RoomName),
		zap.String("dispatch_id", dispatchID))
	return call.Clone(), dispatchID, nil
}

// UpdateStatus applies a status change plus optional field patch to an active
// call and broadcasts the updated record. Reaching a terminal status retires
// the record to the historical partition; afterwards every mutation on the
// call id fails with ErrCallNotFound.
func (r *Registry) UpdateStatus(callID string, status types.CallStatus, patch *types.StatusPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateStatusLocked(callID, status, patch)
}

func (r *Registry) updateStatusLocked(callID string, status types.CallStatus, patch *types.StatusPatch) error {
	call, ok := r.active[callID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}

	call.Status = status
	patch.Apply(call)
	if status.Terminal() && call.EndTime == nil {
		end := r.now()
		call.EndTime = &end
	}
	call.RefreshDuration(r.now())

	r.broadcastLocked(types.Event{
		Type:   types.EventStatusUpdate,
		CallID: callID,
		Status: status,
		Data:   call.Clone(),
	})

	if status.Terminal() {
		r.retireLocked(call)
	}
	return nil
}

// retireLocked moves the record out of the active partition. The record is
// never visible in both partitions: both steps happen under the lock.
func (r *Registry) retireLocked(call *types.CallRecord) {
	delete(r.active, call.CallID)
	r.history = append(r.history, call)
	r.log.Info("call retired",
		zap.String("call_id", call.CallID),
		zap.String("status", string(call.Status)),
		zap.Float64("duration", call.Duration))
}

// AppendTranscript appends one utterance and broadcasts just the new entry.
func (r *Registry) AppendTranscript(callID string, entry types.TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.active[callID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	call.Transcript = append(call.Transcript, entry)

	r.broadcastLocked(types.Event{
		Type:    types.EventTranscript,
		CallID:  callID,
		Message: &entry,
	})
	return nil
}

// AppendAudioMetric appends one telemetry sample, keeping only the most
// recent MaxAudioMetrics samples, and broadcasts just the new sample.
func (r *Registry) AppendAudioMetric(callID string, sample types.AudioMetricSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.active[callID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = r.now()
	}
	call.AudioMetrics = append(call.AudioMetrics, sample)
	if n := len(call.AudioMetrics); n > types.MaxAudioMetrics {
		call.AudioMetrics = append([]types.AudioMetricSample(nil), call.AudioMetrics[n-types.MaxAudioMetrics:]...)
	}

	r.broadcastLocked(types.Event{
		Type:    types.EventAudioMetrics,
		CallID:  callID,
		Metrics: &sample,
	})
	return nil
}

// Transfer delegates the SIP transfer, then records the TRANSFERRING status.
// On delegated failure the record is left unchanged and the error surfaces to
// the caller; no event is broadcast and nothing is retried.
func (r *Registry) Transfer(ctx context.Context, callID, transferTo string) error {
	r.mu.Lock()
	call, ok := r.active[callID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	room, participant := call.RoomName, call.PhoneNumber
	r.mu.Unlock()

	if err := r.driver.TransferParticipant(ctx, room, participant, utils.TelURI(transferTo)); err != nil {
		r.log.Error("transfer failed",
			zap.String("call_id", callID),
			zap.Error(err))
		return &DelegatedError{Op: "transfer participant", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateStatusLocked(callID, types.StatusTransferring, &types.StatusPatch{TransferTo: &transferTo})
}

// EndCall tears the session down, then marks the call ENDED and retires it.
// On teardown failure the record stays active and untouched; retrying EndCall
// is the recovery path, so membership is never ambiguous.
func (r *Registry) EndCall(ctx context.Context, callID string) error {
	r.mu.Lock()
	call, ok := r.active[callID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	room := call.RoomName
	r.mu.Unlock()

	if err := r.driver.TeardownSession(ctx, room); err != nil {
		r.log.Error("teardown failed",
			zap.String("call_id", callID),
			zap.Error(err))
		return &DelegatedError{Op: "teardown session", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateStatusLocked(callID, types.StatusEnded, nil)
}

// Statistics computes the aggregate figures over the historical partition.
func (r *Registry) Statistics() types.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statisticsLocked()
}

func (r *Registry) statisticsLocked() types.Stats {
	stats := types.Stats{ActiveCalls: len(r.active)}
	if len(r.history) == 0 {
		return stats
	}

	var transferred int
	var totalDuration float64
	for _, call := range r.history {
		if call.Outcome == types.OutcomeTransferred {
			transferred++
		}
		totalDuration += call.Duration
	}

	stats.TotalCalls = len(r.history)
	stats.SuccessfulTransfers = transferred
	stats.TotalDuration = totalDuration
	stats.AverageDuration = totalDuration / float64(len(r.history))
	stats.SuccessRate = float64(transferred) / float64(len(r.history)) * 100
	return stats
}

// Call returns a point-in-time copy of the record, searching the active
// partition first and then history.
func (r *Registry) Call(callID string) (*types.CallRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if call, ok := r.active[callID]; ok {
		cp := call.Clone()
		cp.RefreshDuration(r.now())
		return cp, true
	}
	for _, call := range r.history {
		if call.CallID == callID {
			return call.Clone(), true
		}
	}
	return nil, false
}

// Recent returns up to limit historical records in insertion order, oldest of
// the window first, plus the total history size.
func (r *Registry) Recent(limit int) ([]*types.CallRecord, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = snapshotHistory
	}
	start := len(r.history) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*types.CallRecord, 0, len(r.history)-start)
	for _, call := range r.history[start:] {
		out = append(out, call.Clone())
	}
	return out, len(r.history)
}

// snapshotLocked builds the initial_state event for a new observer.
func (r *Registry) snapshotLocked() types.Event {
	activeCalls := make(map[string]*types.CallRecord, len(r.active))
	now := r.now()
	for id, call := range r.active {
		cp := call.Clone()
		cp.RefreshDuration(now)
		activeCalls[id] = cp
	}

	start := len(r.history) - snapshotHistory
	if start < 0 {
		start = 0
	}
	recent := make([]*types.CallRecord, 0, len(r.history)-start)
	for _, call := range r.history[start:] {
		recent = append(recent, call.Clone())
	}

	stats := r.statisticsLocked()
	return types.Event{
		Type:        types.EventInitialState,
		ActiveCalls: activeCalls,
		CallHistory: recent,
		Stats:       &stats,
	}
}

// broadcastLocked delivers the event to every observer. Failures are isolated
// per observer: a failed recipient is removed and delivery continues.
func (r *Registry) broadcastLocked(ev types.Event) {
	for ob := range r.observers {
		if err := ob.Send(ev); err != nil {
			delete(r.observers, ob)
			r.log.Warn("dropping observer, send failed",
				zap.Error(err),
				zap.Int("observers", len(r.observers)))
		}
	}
}
