// Package validator rate-limits session revalidation against the backend. Triggers (initial
// delay, focus, visible-only ticker, explicit) collapse onto a single in-flight check.
package validator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"medconnect/client/internal/session"
	"medconnect/client/internal/telemetry"
	userdomain "medconnect/client/internal/user/domain"
)

const (
	// DefaultInterval is the throttle window and the periodic tick.
	DefaultInterval = 10 * time.Minute
	// DefaultInitialDelay delays the first validation after Run starts.
	DefaultInitialDelay = time.Second
)

// Validation results recorded on the validations counter.
const (
	resultValid        = "valid"
	resultInvalid      = "invalid"
	resultRoleMismatch = "role_mismatch"
	resultSkipped      = "skipped"
)

// Session is the part of the session manager the validator drives.
type Session interface {
	ValidateSession(ctx context.Context) bool
	Logout(ctx context.Context) string
	Snapshot() session.Snapshot
}

// Navigator receives redirect targets. The agent logs them; a UI would route to them.
type Navigator func(route string)

// Result is the outcome of one Check.
type Result struct {
	Valid bool
	// Skipped is set when the call was throttled or abandoned; Valid is then the last known validity.
	Skipped bool
	// Redirect is the route the validator navigated to, if any.
	Redirect string
}

// Clock reports validator timing.
type Clock struct {
	LastValidatedAt *time.Time
	InFlight        bool
}

// Validator throttles and deduplicates calls to Session.ValidateSession.
type Validator struct {
	session           Session
	navigate          Navigator
	interval          time.Duration
	initialDelay      time.Duration
	requiredRole      userdomain.Role
	redirectOnFailure bool
	nowF              func() time.Time
	logger            *slog.Logger
	metrics           *telemetry.Metrics
	emitter           telemetry.EventEmitter

	group   singleflight.Group
	focus   chan struct{}
	visible atomic.Bool

	mu              sync.Mutex
	lastValidatedAt *time.Time
	lastValid       bool
	inFlight        bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithInterval sets the minimum time between unforced validations and the ticker period.
func WithInterval(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.interval = d
		}
	}
}

// WithInitialDelay sets the delay before the first validation in Run.
func WithInitialDelay(d time.Duration) Option {
	return func(v *Validator) {
		if d >= 0 {
			v.initialDelay = d
		}
	}
}

// WithRequiredRole makes a role mismatch a failed validation that redirects instead of logging out.
func WithRequiredRole(r userdomain.Role) Option {
	return func(v *Validator) { v.requiredRole = r }
}

// WithRedirectOnFailure controls whether failures log out and mismatches navigate. Default true.
func WithRedirectOnFailure(b bool) Option {
	return func(v *Validator) { v.redirectOnFailure = b }
}

// WithClock overrides time.Now.
func WithClock(nowF func() time.Time) Option {
	return func(v *Validator) {
		if nowF != nil {
			v.nowF = nowF
		}
	}
}

// WithNavigator sets the redirect callback.
func WithNavigator(n Navigator) Option {
	return func(v *Validator) { v.navigate = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithEmitter sets the telemetry emitter for failures and role mismatches.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(v *Validator) { v.emitter = e }
}

// New returns a Validator over s. The page is considered visible until SetVisible(false).
func New(s Session, opts ...Option) *Validator {
	v := &Validator{
		session:           s,
		interval:          DefaultInterval,
		initialDelay:      DefaultInitialDelay,
		redirectOnFailure: true,
		nowF:              time.Now,
		logger:            slog.Default(),
		focus:             make(chan struct{}, 1),
		lastValid:         true,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("component", "session_validator")
	v.visible.Store(true)
	return v
}

// Check validates the session unless a validation ran within the interval and force is false.
// Callers arriving while a validation is in flight share its outcome. If ctx ends first the
// last known validity is returned as skipped; the in-flight validation still completes.
func (v *Validator) Check(ctx context.Context, force bool) Result {
	// The throttle decision and joining or starting the flight happen under v.mu; validate
	// records lastValidatedAt under v.mu before its flight leaves the group.
	v.mu.Lock()
	if !force && !v.inFlight && v.lastValidatedAt != nil && v.nowF().Sub(*v.lastValidatedAt) < v.interval {
		last := v.lastValid
		v.mu.Unlock()
		v.metrics.RecordValidation(ctx, resultSkipped)
		return Result{Valid: last, Skipped: true}
	}
	ch := v.group.DoChan("validate", func() (any, error) {
		return v.validate(context.WithoutCancel(ctx)), nil
	})
	v.mu.Unlock()

	select {
	case r := <-ch:
		return r.Val.(Result)
	case <-ctx.Done():
		return Result{Valid: v.lastKnown(), Skipped: true}
	}
}

func (v *Validator) validate(ctx context.Context) Result {
	v.mu.Lock()
	v.inFlight = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.inFlight = false
		v.mu.Unlock()
	}()

	valid := v.session.ValidateSession(ctx)
	now := v.nowF()
	v.mu.Lock()
	v.lastValidatedAt = &now
	v.mu.Unlock()

	if !valid {
		v.record(ctx, false, resultInvalid)
		v.logger.Warn("session validation failed")
		telemetry.EmitAsync(v.emitter, ctx, &telemetry.Event{Type: telemetry.EventValidationFailed})
		res := Result{Valid: false}
		if v.redirectOnFailure {
			res.Redirect = v.session.Logout(ctx)
			v.redirect(res.Redirect)
		}
		return res
	}

	snap := v.session.Snapshot()
	if v.requiredRole != "" && (snap.User == nil || snap.User.Role != v.requiredRole) {
		v.record(ctx, false, resultRoleMismatch)
		var actual userdomain.Role
		ev := &telemetry.Event{Type: telemetry.EventRoleMismatch, Detail: "required " + string(v.requiredRole)}
		if snap.User != nil {
			actual = snap.User.Role
			ev.UserID, ev.Role = snap.User.ID, string(actual)
		}
		v.logger.Warn("role validation failed", "required", v.requiredRole, "actual", actual)
		telemetry.EmitAsync(v.emitter, ctx, ev)
		res := Result{Valid: false}
		if v.redirectOnFailure {
			res.Redirect = userdomain.DashboardPath(actual)
			v.redirect(res.Redirect)
		}
		return res
	}

	v.record(ctx, true, resultValid)
	return Result{Valid: true}
}

func (v *Validator) record(ctx context.Context, valid bool, result string) {
	v.mu.Lock()
	v.lastValid = valid
	v.mu.Unlock()
	v.metrics.RecordValidation(ctx, result)
}

func (v *Validator) redirect(route string) {
	if v.navigate != nil && route != "" {
		v.navigate(route)
	}
}

func (v *Validator) lastKnown() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastValid
}

// ValidateNow forces a validation regardless of the throttle.
func (v *Validator) ValidateNow(ctx context.Context) Result {
	return v.Check(ctx, true)
}

// IsSessionValid reports the last known auth state against the required role without I/O.
func (v *Validator) IsSessionValid() bool {
	snap := v.session.Snapshot()
	if !snap.Authenticated() {
		return false
	}
	return v.requiredRole == "" || snap.User.Role == v.requiredRole
}

// Status returns the validator clock.
func (v *Validator) Status() Clock {
	v.mu.Lock()
	defer v.mu.Unlock()
	c := Clock{InFlight: v.inFlight}
	if v.lastValidatedAt != nil {
		t := *v.lastValidatedAt
		c.LastValidatedAt = &t
	}
	return c
}

// Focus signals that the user returned. Run validates (throttled) on the next loop turn.
func (v *Validator) Focus() {
	select {
	case v.focus <- struct{}{}:
	default:
	}
}

// SetVisible gates the periodic ticker.
func (v *Validator) SetVisible(visible bool) {
	v.visible.Store(visible)
}

// Run drives the triggers until ctx is cancelled: once after the initial delay, on every Focus,
// and on each tick while visible. Triggers are ignored while signed out.
func (v *Validator) Run(ctx context.Context) {
	initial := time.NewTimer(v.initialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-initial.C:
			v.trigger(ctx, "initial")
		case <-v.focus:
			v.trigger(ctx, "focus")
		case <-ticker.C:
			if v.visible.Load() {
				v.trigger(ctx, "tick")
			}
		}
	}
}

func (v *Validator) trigger(ctx context.Context, source string) {
	if !v.session.Snapshot().Authenticated() {
		return
	}
	res := v.Check(ctx, false)
	v.logger.Debug("validation trigger", "source", source, "valid", res.Valid, "skipped", res.Skipped)
}
