// Package agent wires the session, validator, notification engine and route guard into one
// long-running client.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"medconnect/client/internal/backend"
	"medconnect/client/internal/config"
	"medconnect/client/internal/guard"
	"medconnect/client/internal/health"
	notificationdomain "medconnect/client/internal/notification/domain"
	"medconnect/client/internal/notification/service"
	"medconnect/client/internal/policy/engine"
	"medconnect/client/internal/server"
	"medconnect/client/internal/session"
	"medconnect/client/internal/session/validator"
	"medconnect/client/internal/storage"
	"medconnect/client/internal/telemetry"
	otelsetup "medconnect/client/internal/telemetry/otel"
	"medconnect/client/internal/telemetry/producer"
	userdomain "medconnect/client/internal/user/domain"
)

const serviceName = "medconnect-agent"

// readinessInterval is how often the health server re-runs readiness checks.
const readinessInterval = 30 * time.Second

// ErrNoCredentials is returned by Run when there is no stored session and no configured login.
var ErrNoCredentials = errors.New("agent: no stored session and AGENT_EMAIL/AGENT_PASSWORD not set")

// AlertPrompter shows a security alert to the user. Returning true logs the session out.
type AlertPrompter interface {
	PromptSecurityAlert(ctx context.Context, n notificationdomain.Notification) (logout bool)
}

// AlertPrompterFunc adapts a function to AlertPrompter.
type AlertPrompterFunc func(ctx context.Context, n notificationdomain.Notification) bool

func (f AlertPrompterFunc) PromptSecurityAlert(ctx context.Context, n notificationdomain.Notification) bool {
	return f(ctx, n)
}

// Agent owns every client component for one user session.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	store     storage.Store
	ownsStore bool
	client    *backend.Client
	providers *otelsetup.Providers
	kafka     *producer.KafkaProducer
	metrics   *telemetry.Metrics

	Session       *session.Manager
	Validator     *validator.Validator
	Notifications *service.Engine

	guard    *guard.Guard
	policy   *engine.OPAEvaluator
	health   *server.Health
	prompter AlertPrompter
	navigate validator.Navigator

	authenticated atomic.Bool
	alerts        sync.WaitGroup
	baseCtx       context.Context
	cancelBase    context.CancelFunc
	unsubscribe   []func()
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStore uses s instead of opening the store selected by config. The caller keeps ownership.
func WithStore(s storage.Store) Option {
	return func(a *Agent) { a.store = s }
}

// WithAlertPrompter sets the handler for security alerts. Default logs and keeps the session.
func WithAlertPrompter(p AlertPrompter) Option {
	return func(a *Agent) { a.prompter = p }
}

// WithNavigator receives validator redirects. Default logs them.
func WithNavigator(n validator.Navigator) Option {
	return func(a *Agent) { a.navigate = n }
}

// New builds every component from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Agent, err error) {
	a := &Agent{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.baseCtx, a.cancelBase = context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()
	if a.navigate == nil {
		a.navigate = func(route string) { a.logger.Info("navigate", "route", route) }
	}
	if a.prompter == nil {
		a.prompter = AlertPrompterFunc(func(_ context.Context, n notificationdomain.Notification) bool {
			a.logger.Warn("security alert received", "notification_id", n.ID, "message", n.Message)
			return false
		})
	}

	a.providers, err = otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("agent: telemetry providers: %w", err)
	}
	a.providers.SetGlobal()
	a.metrics, err = telemetry.NewMetrics(a.providers.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("agent: metrics: %w", err)
	}
	a.kafka, err = producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic, a.logger)
	if err != nil {
		return nil, fmt.Errorf("agent: kafka producer: %w", err)
	}
	emitter := telemetry.Multi{
		otelsetup.NewEventEmitter(a.providers.LoggerProvider),
		producer.AsEmitter(a.kafka),
	}

	if a.store == nil {
		if a.store, err = storage.Open(ctx, cfg, a.logger); err != nil {
			return nil, err
		}
		a.ownsStore = true
	}

	a.client = backend.New(cfg.APIBaseURL,
		backend.WithTimeout(cfg.HTTPClientTimeout()),
		backend.WithTracerProvider(a.providers.TracerProvider))

	a.Session = session.New(a.store, a.client,
		session.WithLogger(a.logger),
		session.WithEmitter(emitter))

	a.Validator = validator.New(a.Session,
		validator.WithInterval(cfg.ValidationEvery()),
		validator.WithInitialDelay(cfg.ValidationDelay()),
		validator.WithRequiredRole(userdomain.Role(cfg.RequiredRole)),
		validator.WithNavigator(a.navigate),
		validator.WithLogger(a.logger),
		validator.WithMetrics(a.metrics),
		validator.WithEmitter(emitter))

	a.Notifications = service.New(a.store, a.client, service.TokenFunc(a.token),
		service.WithPollInterval(cfg.PollInterval()),
		service.WithDedupWindow(cfg.DedupWindow()),
		service.WithSuccessTTL(cfg.SuccessTTL()),
		service.WithPendingTTL(cfg.PendingTTL()),
		service.WithSecurityMarker(cfg.SecurityAlertMarker),
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
		service.WithEmitter(emitter))

	a.policy, err = engine.NewOPAEvaluatorFromFile(ctx, cfg.RoutePolicyFile, a.logger)
	if err != nil {
		return nil, fmt.Errorf("agent: route policy: %w", err)
	}
	a.guard = guard.New(a.policy)

	checker := health.Checker{PolicyChecker: a.policy}
	if p, ok := a.store.(health.Pinger); ok {
		checker.Pinger = p
	}
	a.health = server.NewHealth(checker, a.logger)

	a.wire()
	return a, nil
}

// token reads the in-memory session so the engine never polls with a token the session has
// already dropped.
func (a *Agent) token(context.Context) string {
	return a.Session.Snapshot().Token
}

func (a *Agent) wire() {
	a.unsubscribe = append(a.unsubscribe,
		a.Session.Subscribe(a.onSession),
		a.Notifications.OnEvent(a.onNotificationEvent),
	)
}

func (a *Agent) onSession(snap session.Snapshot) {
	if snap.Loading {
		return
	}
	authed := snap.Authenticated()
	a.health.SetAuthenticated(authed)
	if was := a.authenticated.Swap(authed); was && !authed {
		a.Notifications.Reset(a.baseCtx)
	}
}

func (a *Agent) onNotificationEvent(ev service.Event) {
	switch ev.Kind {
	case service.EventUnauthorized:
		a.Session.Invalidate(a.baseCtx, "notifications: "+ev.Source)
	case service.EventSecurityAlert:
		a.alerts.Add(1)
		go func() {
			defer a.alerts.Done()
			if a.prompter.PromptSecurityAlert(a.baseCtx, ev.Notification) {
				a.navigate(a.Session.Logout(a.baseCtx))
			}
		}()
	}
}

// Run restores or establishes the session, then runs the validator, the notification engine
// and the health server until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.Session.Init(ctx)
	if !a.Session.Snapshot().Authenticated() {
		if a.cfg.AgentEmail == "" || a.cfg.AgentPassword == "" {
			return ErrNoCredentials
		}
		route, err := a.Session.Login(ctx, a.cfg.AgentEmail, a.cfg.AgentPassword)
		if err != nil {
			return fmt.Errorf("agent: login: %w", err)
		}
		a.navigate(route)
	}
	snap := a.Session.Snapshot()
	a.logger.Info("session ready", "user_id", snap.User.ID, "role", snap.User.Role)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { a.Validator.Run(ctx) })
	run(func() { a.Notifications.Run(ctx) })
	run(func() { a.refreshReadiness(ctx) })
	if a.cfg.HealthAddr != "" {
		s := server.NewGRPCServer()
		a.health.Register(s)
		run(func() {
			if err := server.Serve(ctx, a.cfg.HealthAddr, s, a.logger); err != nil {
				errCh <- fmt.Errorf("agent: health server: %w", err)
			}
		})
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		cancel()
	}
	wg.Wait()
	return err
}

func (a *Agent) refreshReadiness(ctx context.Context) {
	_ = a.health.Refresh(ctx)
	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = a.health.Refresh(ctx)
		}
	}
}

// Guard decides what a page requiring requiredRole at location should do for the current session.
func (a *Agent) Guard(ctx context.Context, requiredRole userdomain.Role, location string) guard.Decision {
	return a.guard.Decide(ctx, a.Session.Snapshot(), guard.Request{RequiredRole: requiredRole, Location: location})
}

// Health returns the health service so callers can register it on their own gRPC server.
func (a *Agent) Health() *server.Health {
	return a.health
}

// Close waits for pending alert prompts and background notification calls, then flushes
// telemetry and closes the store.
func (a *Agent) Close(ctx context.Context) error {
	for _, fn := range a.unsubscribe {
		fn()
	}
	if a.cancelBase != nil {
		a.cancelBase()
	}
	a.alerts.Wait()
	if a.Notifications != nil {
		a.Notifications.Wait()
	}
	if a.health != nil {
		a.health.Shutdown()
	}

	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.providers != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, telemetry.ShutdownDrainDuration)
		errs = append(errs, a.providers.Shutdown(shutdownCtx))
		cancel()
	}
	if a.ownsStore && a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
