// Package service keeps the notification cache in sync with the backend: periodic polling,
// optimistic local mutations re-applied until the server confirms them, and structured events
// for security alerts and lost authentication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"medconnect/client/internal/backend"
	notificationdomain "medconnect/client/internal/notification/domain"
	"medconnect/client/internal/storage"
	"medconnect/client/internal/telemetry"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultDedupWindow    = 5 * time.Minute
	DefaultSuccessTTL     = 5 * time.Second
	DefaultPendingTTL     = time.Minute
	DefaultSecurityMarker = "SECURITY ALERT"
)

// API is the part of the backend client the engine uses.
type API interface {
	ListNotifications(ctx context.Context, token string, opts backend.ListOptions) (*backend.NotificationPage, error)
	CreateNotification(ctx context.Context, token string, req backend.CreateNotificationRequest) (*backend.Notification, error)
	MarkRead(ctx context.Context, token, id string) error
	MarkAllRead(ctx context.Context, token string) error
	DeleteNotification(ctx context.Context, token, id string) error
	DeleteAllNotifications(ctx context.Context, token string) error
}

// TokenSource yields the bearer token for backend calls; empty means signed out.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

// StoreTokens reads the token from the persisted store on every call.
func StoreTokens(s storage.Store) TokenSource {
	return TokenFunc(func(ctx context.Context) string {
		token, _, err := storage.GetString(ctx, s, storage.KeyToken)
		if err != nil {
			return ""
		}
		return token
	})
}

// EventKind identifies an engine event.
type EventKind int

const (
	// EventSecurityAlert is raised once per notification id for unread, action-requiring alerts.
	EventSecurityAlert EventKind = iota + 1
	// EventUnauthorized is raised when any backend call returns 401; cache and token are already wiped.
	EventUnauthorized
)

func (k EventKind) String() string {
	switch k {
	case EventSecurityAlert:
		return "security_alert"
	case EventUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Event is delivered to OnEvent handlers.
type Event struct {
	Kind EventKind
	// Notification is the alert for EventSecurityAlert.
	Notification notificationdomain.Notification
	// Source names the call that saw the 401 for EventUnauthorized.
	Source string
}

// Engine owns the notification cache. All methods are safe for concurrent use.
type Engine struct {
	store   storage.Store
	api     API
	tokens  TokenSource
	logger  *slog.Logger
	metrics *telemetry.Metrics
	emitter telemetry.EventEmitter
	nowF    func() time.Time
	newID   func() string
	// afterFunc schedules f after d and returns a function that cancels it.
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	interval    time.Duration
	dedupWindow time.Duration
	successTTL  time.Duration
	pendingTTL  time.Duration
	marker      string

	// gen changes whenever in-flight results must be discarded.
	gen atomic.Uint64
	// wg counts background creates and their follow-up calls.
	wg sync.WaitGroup

	mu      sync.Mutex
	cache   []notificationdomain.Notification
	pending pendingState
	// timers holds the auto-dismiss cancel functions keyed by local id.
	timers  map[string]func() bool
	alerted map[string]bool
	prefs   notificationdomain.Preferences
	version uint64

	subMu     sync.Mutex
	subs      map[int]func([]notificationdomain.Notification)
	handlers  map[int]func(Event)
	nextSub   int
	pubMu     sync.Mutex
	published uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets the polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithDedupWindow sets how long an identical title and message are suppressed.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dedupWindow = d
		}
	}
}

// WithSuccessTTL sets the auto-dismiss delay for success entries.
func WithSuccessTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.successTTL = d
		}
	}
}

// WithPendingTTL sets how long unconfirmed optimistic mutations are re-applied over polls.
func WithPendingTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pendingTTL = d
		}
	}
}

// WithSecurityMarker sets the title marker that identifies security alerts.
func WithSecurityMarker(marker string) Option {
	return func(e *Engine) {
		if marker != "" {
			e.marker = marker
		}
	}
}

// WithClock overrides time.Now.
func WithClock(nowF func() time.Time) Option {
	return func(e *Engine) {
		if nowF != nil {
			e.nowF = nowF
		}
	}
}

// WithIDGenerator overrides the local id generator (uuid by default).
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithAfterFunc overrides time.AfterFunc for the success auto-dismiss.
func WithAfterFunc(afterFunc func(d time.Duration, f func()) (stop func() bool)) Option {
	return func(e *Engine) {
		if afterFunc != nil {
			e.afterFunc = afterFunc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEmitter sets the telemetry emitter.
func WithEmitter(em telemetry.EventEmitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// New returns an Engine. A nil tokens reads the token from store on each call.
func New(store storage.Store, api API, tokens TokenSource, opts ...Option) *Engine {
	if tokens == nil {
		tokens = StoreTokens(store)
	}
	e := &Engine{
		store:       store,
		api:         api,
		tokens:      tokens,
		logger:      slog.Default(),
		nowF:        time.Now,
		newID:       newLocalID,
		afterFunc:   wallAfterFunc,
		interval:    DefaultPollInterval,
		dedupWindow: DefaultDedupWindow,
		successTTL:  DefaultSuccessTTL,
		pendingTTL:  DefaultPendingTTL,
		marker:      DefaultSecurityMarker,
		pending:     newPendingState(),
		timers:      make(map[string]func() bool),
		alerted:     make(map[string]bool),
		prefs:       notificationdomain.DefaultPreferences(),
		subs:        make(map[int]func([]notificationdomain.Notification)),
		handlers:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "notifications")
	return e
}

func wallAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Wait blocks until background creates started by Add, and the calls they queue, have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Run loads preferences, polls immediately and then every interval until ctx is done.
// Results still in flight when Run returns are discarded and pending auto-dismiss timers stop.
func (e *Engine) Run(ctx context.Context) {
	defer func() {
		e.gen.Add(1)
		e.mu.Lock()
		e.stopTimersLocked()
		e.mu.Unlock()
	}()
	e.LoadPreferences(ctx)
	_ = e.Poll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = e.Poll(ctx)
		}
	}
}

// Poll fetches the authoritative list and replaces the cache with it, re-applying pending
// local mutations. Without a token the cache is emptied. Errors are logged and returned;
// only a 401 changes state.
func (e *Engine) Poll(ctx context.Context) error {
	gen := e.gen.Load()

	token := e.tokens.Token(ctx)
	if token == "" {
		if e.apply(gen, func() { e.resetLocked() }) {
			e.metrics.RecordPoll(ctx, telemetry.PollNoToken)
			e.publish(ctx)
		}
		return nil
	}

	page, err := e.api.ListNotifications(ctx, token, backend.ListOptions{})
	if e.gen.Load() != gen || ctx.Err() != nil {
		e.metrics.RecordPoll(ctx, telemetry.PollDiscarded)
		return nil
	}
	if err != nil {
		if backend.IsUnauthorized(err) {
			e.metrics.RecordPoll(ctx, telemetry.PollUnauthorized)
			e.handleUnauthorized(ctx, "poll")
			return err
		}
		e.metrics.RecordPoll(ctx, telemetry.PollError)
		e.logger.Warn("fetch notifications failed", "error", err)
		return err
	}

	server := page.Domain()
	var alerts []notificationdomain.Notification
	applied := e.apply(gen, func() {
		e.cache = e.pending.reconcile(server, e.nowF())
		alerts = e.collectAlertsLocked()
	})
	if !applied {
		e.metrics.RecordPoll(ctx, telemetry.PollDiscarded)
		return nil
	}
	e.metrics.RecordPoll(ctx, telemetry.PollOK)
	e.publish(ctx)
	e.raiseAlerts(ctx, alerts)
	return nil
}

// apply runs fn under the state lock when gen is still current and bumps the version.
func (e *Engine) apply(gen uint64, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen.Load() != gen {
		return false
	}
	fn()
	e.version++
	return true
}

// mutate runs fn under the state lock. When fn reports a change the version is bumped and
// the result published.
func (e *Engine) mutate(ctx context.Context, fn func() bool) {
	e.mu.Lock()
	if !fn() {
		e.mu.Unlock()
		return
	}
	e.version++
	alerts := e.collectAlertsLocked()
	e.mu.Unlock()
	e.publish(ctx)
	e.raiseAlerts(ctx, alerts)
}

func (e *Engine) resetLocked() {
	e.cache = nil
	e.pending = newPendingState()
	e.stopTimersLocked()
}

func (e *Engine) stopTimersLocked() {
	for id, stop := range e.timers {
		stop()
		delete(e.timers, id)
	}
}

// Reset drops the cache, pending mutations and auto-dismiss timers and discards in-flight
// results. Used when the session ends.
func (e *Engine) Reset(ctx context.Context) {
	e.gen.Add(1)
	e.mu.Lock()
	e.resetLocked()
	e.alerted = make(map[string]bool)
	e.version++
	e.mu.Unlock()
	e.publish(ctx)
}

func (e *Engine) handleUnauthorized(ctx context.Context, source string) {
	e.gen.Add(1)
	e.mu.Lock()
	e.resetLocked()
	e.version++
	e.mu.Unlock()

	if err := e.store.Delete(context.WithoutCancel(ctx), storage.KeyNotifications, storage.KeyToken); err != nil {
		e.logger.Error("clear notifications and token failed", "error", err)
	}
	e.publish(ctx)

	e.logger.Warn("backend rejected token, notifications cleared", "source", source)
	telemetry.EmitAsync(e.emitter, ctx, &telemetry.Event{Type: telemetry.EventNotificationsUnauthorized, Detail: source})
	e.dispatch(Event{Kind: EventUnauthorized, Source: source})
}

// handleCallError classifies a mutation error: 401 wipes and is returned, anything else is
// logged and returned to the initiating caller. A call started under an older gen is returned
// without touching state.
func (e *Engine) handleCallError(ctx context.Context, gen uint64, op string, err error) error {
	if err == nil {
		return nil
	}
	if e.gen.Load() != gen {
		e.logger.Debug("ignoring error from a call started before reset", "op", op, "error", err)
		return err
	}
	if errors.Is(err, backend.ErrUnauthorized) {
		e.handleUnauthorized(ctx, op)
		return err
	}
	e.logger.Warn("notification call failed", "op", op, "error", err)
	return err
}

func (e *Engine) collectAlertsLocked() []notificationdomain.Notification {
	var out []notificationdomain.Notification
	for _, n := range e.cache {
		if n.IsSecurityAlert(e.marker) && !e.alerted[n.ID] {
			e.alerted[n.ID] = true
			n.Metadata = n.Metadata.Clone()
			out = append(out, n)
		}
	}
	return out
}

func (e *Engine) raiseAlerts(ctx context.Context, alerts []notificationdomain.Notification) {
	for _, n := range alerts {
		e.logger.Warn("security alert", "notification_id", n.ID, "title", n.Title)
		e.metrics.RecordSecurityAlert(ctx)
		telemetry.EmitAsync(e.emitter, ctx, &telemetry.Event{
			Type:           telemetry.EventSecurityAlert,
			NotificationID: n.ID,
			Detail:         n.Title,
		})
		e.dispatch(Event{Kind: EventSecurityAlert, Notification: n})
	}
}

// Notifications returns a copy of the cache, newest first.
func (e *Engine) Notifications() []notificationdomain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return notificationdomain.CloneList(e.cache)
}

// UnreadCount returns the number of unread cached notifications.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, item := range e.cache {
		if !item.Read {
			n++
		}
	}
	return n
}

// Subscribe registers fn to receive the list after every change, in order. The returned
// function unsubscribes.
func (e *Engine) Subscribe(fn func([]notificationdomain.Notification)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// OnEvent registers fn for engine events. Handlers run on the goroutine that caused the
// event and must not block for long; interactive prompts belong on their own goroutine.
func (e *Engine) OnEvent(fn func(Event)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.handlers[id] = fn
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		delete(e.handlers, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) dispatch(ev Event) {
	e.subMu.Lock()
	fns := make([]func(Event), 0, len(e.handlers))
	for _, fn := range e.handlers {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// publish mirrors the latest cache to the store and notifies subscribers. Older versions are
// skipped so the mirror never goes backwards.
func (e *Engine) publish(ctx context.Context) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.Lock()
	version := e.version
	list := notificationdomain.CloneList(e.cache)
	e.mu.Unlock()
	if version <= e.published {
		return
	}
	e.published = version

	e.persist(context.WithoutCancel(ctx), list)

	e.subMu.Lock()
	fns := make([]func([]notificationdomain.Notification), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(notificationdomain.CloneList(list))
	}
}

func (e *Engine) persist(ctx context.Context, list []notificationdomain.Notification) {
	var err error
	if len(list) == 0 {
		err = e.store.Delete(ctx, storage.KeyNotifications)
	} else {
		err = storage.SetJSON(ctx, e.store, storage.KeyNotifications, list)
	}
	if err != nil {
		e.logger.Warn("persist notifications failed", "error", err)
	}
}
