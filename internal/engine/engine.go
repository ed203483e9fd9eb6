// Package engine hosts the attendance capture core: a single-writer event
// loop that folds location samples, backend fetches, clock sync, and user
// actions into one authoritative attendance state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/geo"
	"github.com/cmlabs-hris/attendance-engine-go/internal/location"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine-go/internal/spoof"
	"github.com/cmlabs-hris/attendance-engine-go/internal/timesync"

	"github.com/google/uuid"
)

// StreamTopic is the SSE topic state snapshots are published on.
const StreamTopic = "attendance"

var ErrEngineStopped = errors.New("attendance engine is not running")

// ErrSuperseded resolves a pending request when a newer identity replaced
// the session it belonged to.
var ErrSuperseded = errors.New("superseded by a newer identity")

type Config struct {
	AccuracyCeilingMeters float64
	FetchTimeout          time.Duration
	SubmitTimeout         time.Duration
	PingTimeout           time.Duration
	TickInterval          time.Duration
}

func (c Config) withDefaults() Config {
	if c.AccuracyCeilingMeters == 0 {
		c.AccuracyCeilingMeters = 60
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = 15 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 3 * time.Second
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	return c
}

// Engine owns all mutable session state. Every input reaches it as a
// closure on the events channel and runs on the loop goroutine; there is
// exactly one writer, so no lock guards the session state. Correctness for
// async results rests on the version guard.
type Engine struct {
	cfg        Config
	gateway    session.Gateway
	watcher    *location.Watcher
	detector   spoof.Detector
	timeClient *timesync.Client
	hub        *sse.Hub
	logger     *slog.Logger

	events chan func()
	done   chan struct{}
	runCtx context.Context

	guard VersionGuard
	s     sessionState
}

// sessionState is only ever touched from the loop goroutine.
type sessionState struct {
	token          Token
	sessionID      string
	deviceTimezone string

	bundle    *session.Bundle
	bundleErr error

	record *attendance.Record
	sample *attendance.LocationSample
	gpsErr *location.Error

	trustReason string

	timezone     string
	clock        timesync.Clock
	clockSynced  bool
	clockSyncing bool

	submitting bool

	sub          *location.Subscription
	cancelBranch func()

	pendingIdentify chan identifyOutcome
	pendingAction   chan actionOutcome

	lastView *StateView
}

type identifyOutcome struct {
	resp session.EmployeeResponse
	err  error
}

type actionOutcome struct {
	result ActionResult
	err    error
}

func New(
	cfg Config,
	gateway session.Gateway,
	watcher *location.Watcher,
	detector spoof.Detector,
	timeClient *timesync.Client,
	hub *sse.Hub,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg.withDefaults(),
		gateway:    gateway,
		watcher:    watcher,
		detector:   detector,
		timeClient: timeClient,
		hub:        hub,
		logger:     logger,
		events:     make(chan func(), 128),
		done:       make(chan struct{}),
		runCtx:     context.Background(),
	}
}

// Run drives the loop until ctx is cancelled. It must be called exactly
// once.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	defer close(e.done)
	defer e.teardown()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.events:
			fn()
		case <-ticker.C:
			// Shift windows open and close with the clock even when no
			// other input changes.
			e.recompute()
		}
	}
}

// post runs fn on the loop goroutine, blocking until accepted.
func (e *Engine) post(fn func()) error {
	select {
	case e.events <- fn:
		return nil
	case <-e.done:
		return ErrEngineStopped
	}
}

// tryPost is post for watcher callbacks: it must never block, because the
// loop may be waiting on Subscription.Stop while a callback is in flight.
// A dropped delivery is indistinguishable from one dropped by the guard.
func (e *Engine) tryPost(fn func()) {
	select {
	case e.events <- fn:
	default:
		e.logger.Warn("event queue full, dropping delivery")
	}
}

// ========================================
// PUBLIC API (called from HTTP handlers)
// ========================================

// Identify switches the session to the employee behind the given code. Any
// previous session is torn down first: guard bumped, watcher stopped,
// sample and error state cleared, realtime subscription cancelled.
func (e *Engine) Identify(ctx context.Context, req session.IdentifyRequest) (session.EmployeeResponse, error) {
	if err := req.Validate(); err != nil {
		return session.EmployeeResponse{}, err
	}

	reply := make(chan identifyOutcome, 1)
	err := e.post(func() { e.beginIdentify(req, reply) })
	if err != nil {
		return session.EmployeeResponse{}, err
	}

	select {
	case out := <-reply:
		return out.resp, out.err
	case <-ctx.Done():
		return session.EmployeeResponse{}, ctx.Err()
	case <-e.done:
		return session.EmployeeResponse{}, ErrEngineStopped
	}
}

// Logout tears the session down and returns once the watcher is quiesced.
func (e *Engine) Logout(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	err := e.post(func() {
		e.teardown()
		e.recompute()
		reply <- struct{}{}
	})
	if err != nil {
		return err
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
}

// State returns the current view.
func (e *Engine) State(ctx context.Context) (StateView, error) {
	reply := make(chan StateView, 1)
	err := e.post(func() { reply <- e.view() })
	if err != nil {
		return StateView{}, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	case <-e.done:
		return StateView{}, ErrEngineStopped
	}
}

// CheckIn re-validates every precondition synchronously on the loop, then
// submits. The reply arrives once the submission (and any conflict
// reconciliation) resolves.
func (e *Engine) CheckIn(ctx context.Context) (ActionResult, error) {
	return e.action(ctx, e.beginCheckIn)
}

// CheckOut closes the open record, with the same location checks but no
// shift-window requirement.
func (e *Engine) CheckOut(ctx context.Context) (ActionResult, error) {
	return e.action(ctx, e.beginCheckOut)
}

func (e *Engine) action(ctx context.Context, begin func(chan actionOutcome)) (ActionResult, error) {
	reply := make(chan actionOutcome, 1)
	if err := e.post(func() { begin(reply) }); err != nil {
		return ActionResult{}, err
	}

	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return ActionResult{}, ctx.Err()
	case <-e.done:
		return ActionResult{}, ErrEngineStopped
	}
}

// ========================================
// LOOP-SIDE HANDLERS
// ========================================

func (e *Engine) beginIdentify(req session.IdentifyRequest, reply chan identifyOutcome) {
	e.teardown()

	tok := e.guard.Bump()
	e.s = sessionState{
		token:           tok,
		sessionID:       uuid.NewString(),
		deviceTimezone:  req.DeviceTimezone,
		pendingIdentify: reply,
	}
	e.recompute()

	code := req.NormalizedCode()
	go func() {
		ctx, cancel := context.WithTimeout(e.runCtx, e.cfg.FetchTimeout)
		defer cancel()
		bundle, err := e.gateway.ResolveEmployeeByCode(ctx, code)
		e.tryApply(tok, func() { e.applyBundle(tok, bundle, err, false) })
	}()
}

// tryApply posts a closure that re-validates the token before running.
func (e *Engine) tryApply(tok Token, fn func()) {
	_ = e.post(func() {
		if !e.guard.Valid(tok) {
			return
		}
		fn()
	})
}

func (e *Engine) applyBundle(tok Token, bundle session.Bundle, err error, reconcile bool) {
	if err != nil {
		if reconcile {
			// Keep serving the previous bundle; the backend re-validates
			// every submission anyway.
			e.logger.Error("bundle re-fetch failed", "error", err)
			return
		}
		e.s.bundleErr = err
		e.resolveIdentify(session.EmployeeResponse{}, err)
		e.recompute()
		return
	}

	if reconcile && e.s.bundle != nil &&
		bundle.Employee.CompanyID != e.s.bundle.Employee.CompanyID {
		// Stale or mismatched cache pushed from the backend.
		e.logger.Warn("discarding branch update with mismatched company",
			"got", bundle.Employee.CompanyID,
			"want", e.s.bundle.Employee.CompanyID)
		return
	}
	if bundle.Branch != nil && bundle.Branch.CompanyID != bundle.Employee.CompanyID {
		if !reconcile {
			e.resolveIdentify(session.EmployeeResponse{}, session.ErrCompanyMismatch)
		}
		e.logger.Warn("discarding bundle with cross-company branch",
			"branch_company", bundle.Branch.CompanyID,
			"employee_company", bundle.Employee.CompanyID)
		return
	}

	// Employee, branch, and shift always move together; a partial update
	// of branch fields with stale shift data must be impossible.
	b := bundle
	e.s.bundle = &b
	e.s.bundleErr = nil

	if !reconcile {
		e.resolveIdentify(session.NewEmployeeResponse(b), nil)
		e.startWatching(e.s.token)
		e.fetchOpenRecord(e.s.token, nil)
		e.subscribeBranch(e.s.token)
	}
	e.recompute()
}

func (e *Engine) resolveIdentify(resp session.EmployeeResponse, err error) {
	if e.s.pendingIdentify == nil {
		return
	}
	e.s.pendingIdentify <- identifyOutcome{resp: resp, err: err}
	e.s.pendingIdentify = nil
}

func (e *Engine) startWatching(tok Token) {
	e.s.sub = e.watcher.Start(
		func(sample attendance.LocationSample) {
			e.tryPost(func() {
				if !e.guard.Valid(tok) {
					return
				}
				e.applySample(tok, sample)
			})
		},
		func(werr *location.Error) {
			e.tryPost(func() {
				if !e.guard.Valid(tok) {
					return
				}
				e.applyWatchError(werr)
			})
		},
	)
}

func (e *Engine) applySample(tok Token, sample attendance.LocationSample) {
	verdict := e.detector.Inspect(sample)
	if verdict.Mocked {
		// The flagged sample is consumed: it never becomes the current
		// fix, so the same sample cannot be retried.
		e.s.trustReason = verdict.Reason
		e.reportFraud(sample, verdict)
		e.recompute()
		return
	}

	e.s.trustReason = ""
	e.s.sample = &sample
	e.s.gpsErr = nil

	if !e.s.clockSynced && !e.s.clockSyncing {
		e.syncClock(tok, sample)
	}
	e.recompute()
}

func (e *Engine) applyWatchError(werr *location.Error) {
	if !werr.Hard() {
		// Permission pending is bootstrap, not failure; stay in loading.
		e.logger.Info("waiting for location permission")
		return
	}
	e.s.gpsErr = werr
	e.recompute()
}

func (e *Engine) reportFraud(sample attendance.LocationSample, verdict spoof.Verdict) {
	if e.s.bundle == nil {
		return
	}
	event := session.FraudEvent{
		ID:             uuid.NewString(),
		Type:           "mock_location",
		Description:    verdict.Reason,
		Severity:       "high",
		EmployeeID:     e.s.bundle.Employee.ID,
		CompanyID:      e.s.bundle.Employee.CompanyID,
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		AccuracyMeters: sample.AccuracyMeters,
		OccurredAt:     sample.CapturedAt,
		Metadata: map[string]string{
			"session_id": e.s.sessionID,
		},
	}
	logger := e.logger
	gw := e.gateway

	// Fire and forget: a failed report never changes the user-facing
	// denial.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.ReportFraudEvent(ctx, event); err != nil {
			logger.Error("fraud report failed", "error", err, "event_id", event.ID)
		}
	}()
	e.logger.Warn("mock location detected",
		"employee_id", event.EmployeeID, "reason", verdict.Reason)
}

func (e *Engine) syncClock(tok Token, sample attendance.LocationSample) {
	e.s.clockSyncing = true
	deviceTZ := e.s.deviceTimezone
	go func() {
		ctx, cancel := context.WithTimeout(e.runCtx, e.cfg.FetchTimeout)
		defer cancel()

		tz, err := e.gateway.ResolveTimezone(ctx, sample.Latitude, sample.Longitude, deviceTZ)
		if err != nil || tz == "" {
			tz = deviceTZ
			if tz == "" {
				tz = "UTC"
			}
		}
		clock := e.timeClient.Sync(ctx, tz)

		e.tryApply(tok, func() {
			e.s.clock = clock
			e.s.timezone = clock.Timezone
			e.s.clockSynced = true
			e.s.clockSyncing = false
			if clock.Degraded {
				e.logger.Warn("time sync degraded, using local clock", "timezone", tz)
			}
			e.recompute()
		})
	}()
}

func (e *Engine) fetchOpenRecord(tok Token, reply chan actionOutcome) {
	if e.s.bundle == nil {
		return
	}
	employeeID := e.s.bundle.Employee.ID
	day := e.s.clock.Now()
	go func() {
		ctx, cancel := context.WithTimeout(e.runCtx, e.cfg.FetchTimeout)
		defer cancel()
		rec, err := e.gateway.FetchOpenRecord(ctx, employeeID, day)
		e.tryApply(tok, func() {
			if err != nil {
				e.logger.Error("open record fetch failed", "error", err)
				if reply != nil {
					reply <- actionOutcome{err: attendance.ErrSubmissionFailed}
				}
				return
			}
			e.s.record = rec
			if reply != nil {
				out := actionOutcome{result: ActionResult{State: e.currentState(), Reconciled: true}}
				if rec != nil {
					r := attendance.NewRecordResponse(*rec)
					out.result.Record = &r
				}
				reply <- out
			}
			e.recompute()
		})
	}()
}

func (e *Engine) subscribeBranch(tok Token) {
	if e.s.bundle == nil || e.s.bundle.Branch == nil {
		return
	}
	branchID := e.s.bundle.Branch.ID
	companyID := e.s.bundle.Employee.CompanyID
	code := e.s.bundle.Employee.Code

	cancel, err := e.gateway.SubscribeBranchUpdates(e.runCtx, branchID, companyID, func(update session.BranchUpdate) {
		e.tryPost(func() {
			if !e.guard.Valid(tok) {
				return
			}
			if update.CompanyID != companyID {
				e.logger.Warn("dropping branch update for foreign company", "company_id", update.CompanyID)
				return
			}
			// Re-fetch the whole bundle; branch geometry, shift, and
			// employee assignment are reconciled as one unit.
			go func() {
				ctx, cancelFetch := context.WithTimeout(e.runCtx, e.cfg.FetchTimeout)
				defer cancelFetch()
				bundle, fetchErr := e.gateway.ResolveEmployeeByCode(ctx, code)
				e.tryApply(tok, func() { e.applyBundle(tok, bundle, fetchErr, true) })
			}()
		})
	})
	if err != nil {
		e.logger.Error("branch subscription failed", "error", err, "branch_id", branchID)
		return
	}
	e.s.cancelBranch = cancel
}

func (e *Engine) beginCheckIn(reply chan actionOutcome) {
	if e.s.bundle == nil {
		reply <- actionOutcome{err: session.ErrNotIdentified}
		return
	}
	if e.s.submitting {
		// Second tap while submitting is a no-op, never a queued duplicate.
		reply <- actionOutcome{err: attendance.ErrSubmissionInFlight}
		return
	}
	if e.s.trustReason != "" {
		reply <- actionOutcome{err: attendance.ErrMockedLocation}
		return
	}

	snap := e.snapshot()
	gate := CanCheckIn(snap, e.s.bundle.Shift, e.s.clock.Now(), e.cfg.AccuracyCeilingMeters)
	if !gate.Allowed {
		reply <- actionOutcome{err: gate.Err, result: ActionResult{State: e.currentState()}}
		return
	}

	sub := attendance.CheckInSubmission{
		EmployeeID:     e.s.bundle.Employee.ID,
		CompanyID:      e.s.bundle.Employee.CompanyID,
		Sample:         *e.s.sample,
		DeviceTimezone: e.submissionTimezone(),
	}
	e.submit(reply, func(ctx context.Context) (attendance.Record, error) {
		return e.gateway.SubmitCheckIn(ctx, sub)
	})
}

func (e *Engine) beginCheckOut(reply chan actionOutcome) {
	if e.s.bundle == nil {
		reply <- actionOutcome{err: session.ErrNotIdentified}
		return
	}
	if e.s.submitting {
		reply <- actionOutcome{err: attendance.ErrSubmissionInFlight}
		return
	}
	if e.s.trustReason != "" {
		reply <- actionOutcome{err: attendance.ErrMockedLocation}
		return
	}

	snap := e.snapshot()
	gate := CanCheckOut(snap, e.cfg.AccuracyCeilingMeters)
	if !gate.Allowed {
		reply <- actionOutcome{err: gate.Err, result: ActionResult{State: e.currentState()}}
		return
	}

	sub := attendance.CheckOutSubmission{
		RecordID:  e.s.record.ID,
		CompanyID: e.s.bundle.Employee.CompanyID,
		Sample:    *e.s.sample,
		Timestamp: e.s.clock.Now(),
	}
	e.submit(reply, func(ctx context.Context) (attendance.Record, error) {
		return e.gateway.SubmitCheckOut(ctx, sub)
	})
}

func (e *Engine) submissionTimezone() string {
	if e.s.timezone != "" {
		return e.s.timezone
	}
	if e.s.deviceTimezone != "" {
		return e.s.deviceTimezone
	}
	return "UTC"
}

func (e *Engine) submit(reply chan actionOutcome, do func(context.Context) (attendance.Record, error)) {
	tok := e.s.token
	e.s.submitting = true
	e.s.pendingAction = reply
	e.recompute()

	go func() {
		pingCtx, cancelPing := context.WithTimeout(e.runCtx, e.cfg.PingTimeout)
		err := e.gateway.Ping(pingCtx)
		cancelPing()
		if err != nil {
			// Offline: fail locally before attempting the submission.
			e.tryApply(tok, func() { e.finishSubmit(tok, attendance.Record{}, attendance.ErrOffline) })
			return
		}

		ctx, cancel := context.WithTimeout(e.runCtx, e.cfg.SubmitTimeout)
		defer cancel()
		rec, err := do(ctx)
		e.tryApply(tok, func() { e.finishSubmit(tok, rec, err) })
	}()
}

func (e *Engine) finishSubmit(tok Token, rec attendance.Record, err error) {
	e.s.submitting = false
	reply := e.s.pendingAction
	e.s.pendingAction = nil

	switch {
	case err == nil:
		r := rec
		e.s.record = &r
		e.recompute()
		if reply != nil {
			resp := attendance.NewRecordResponse(r)
			reply <- actionOutcome{result: ActionResult{Record: &resp, State: e.currentState()}}
		}

	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		// The backend is authoritative: reconcile by re-fetching rather
		// than treating the conflict as a failure.
		e.logger.Info("check-in conflict, reconciling from backend")
		e.fetchOpenRecord(tok, reply)
		e.recompute()

	case errors.Is(err, attendance.ErrOffline):
		e.recompute()
		if reply != nil {
			reply <- actionOutcome{err: attendance.ErrOffline}
		}

	default:
		// Whether a record now exists is re-derived from the backend,
		// never assumed from the failed request.
		e.logger.Error("submission failed", "error", err)
		e.fetchOpenRecordSilently(tok)
		e.recompute()
		if reply != nil {
			reply <- actionOutcome{err: attendance.ErrSubmissionFailed}
		}
	}
}

func (e *Engine) fetchOpenRecordSilently(tok Token) {
	e.fetchOpenRecord(tok, nil)
}

// teardown clears the session in one step: guard bump, watcher stop,
// in-memory state reset, realtime unsubscribe. Doing all four together is
// what keeps delayed callbacks from one identity out of the next.
func (e *Engine) teardown() {
	e.guard.Bump()

	if e.s.sub != nil {
		e.s.sub.Stop()
	}
	if e.s.cancelBranch != nil {
		e.s.cancelBranch()
	}
	if e.detector != nil {
		e.detector.Reset()
	}
	e.resolveIdentify(session.EmployeeResponse{}, ErrSuperseded)
	if e.s.pendingAction != nil {
		e.s.pendingAction <- actionOutcome{err: ErrSuperseded}
	}

	e.s = sessionState{}
}

// ========================================
// DERIVED STATE
// ========================================

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		Identified: e.s.bundle != nil,
		Submitting: e.s.submitting,
		Record:     e.s.record,
		GPSError:   e.s.gpsErr,
		Sample:     e.s.sample,
	}
	if e.s.bundle != nil && e.s.bundle.Branch != nil {
		branch := e.s.bundle.Branch
		snap.BranchLoaded = branch.Latitude != nil && branch.Longitude != nil
		if snap.Sample != nil {
			snap.Geofence = geo.Evaluate(
				snap.Sample.Latitude, snap.Sample.Longitude,
				branch.Latitude, branch.Longitude,
				branch.RadiusMeters,
			)
		}
	}
	return snap
}

func (e *Engine) currentState() attendance.State {
	return Reduce(e.snapshot())
}

// recompute rebuilds the view and publishes it when it changed.
func (e *Engine) recompute() {
	v := e.view()
	if e.s.lastView != nil && e.s.lastView.Equal(v) {
		return
	}
	if e.s.lastView == nil || e.s.lastView.State != v.State {
		e.logger.Info("state changed", "state", v.State)
	}
	e.s.lastView = &v
	if e.hub != nil {
		e.hub.Publish(StreamTopic, sse.Event{Topic: StreamTopic, Event: "state", Data: v})
	}
}
