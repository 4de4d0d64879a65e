package auth

import (
	"context"
	"net/url"
	"time"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCallbackTimeout bounds the wait for a session to materialise.
const DefaultCallbackTimeout = 15 * time.Second

// CallbackStep names a state of the OAuth callback flow.
type CallbackStep string

const (
	StepStart           CallbackStep = "start"
	StepCheckURL        CallbackStep = "checking-url-for-error"
	StepFetchSession    CallbackStep = "fetch-session"
	StepWaitForEvent    CallbackStep = "wait-for-auth-event"
	StepReinitialize    CallbackStep = "reinitialize-store"
	StepResolveRedirect CallbackStep = "resolve-pending-redirect-path"
	StepNavigate        CallbackStep = "navigate"
	StepFailed          CallbackStep = "failed"
)

// PendingPathTaker hands out the pre-auth path for a client exactly once.
type PendingPathTaker interface {
	Take(ctx context.Context, key string) (string, error)
}

// CallbackRequest is a provider redirect arriving at the callback route.
type CallbackRequest struct {
	Query     url.Values
	ClientKey string
	// Exchange, when set, runs concurrently with the flow once it is listening for events;
	// it is how an authorization code turns into a session.
	Exchange func(ctx context.Context) error
}

// CallbackResult tells the caller where to send the user. Err is nil on success.
type CallbackResult struct {
	Path  string
	Err   error
	Steps []CallbackStep
}

// CallbackFlow turns a provider redirect into an authenticated store.
type CallbackFlow struct {
	coordinator *Coordinator
	backend     authbackend.Client
	pending     PendingPathTaker
	timeout     time.Duration
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

type CallbackOption func(*CallbackFlow)

func WithCallbackTimeout(d time.Duration) CallbackOption {
	return func(f *CallbackFlow) {
		f.timeout = d
	}
}

func WithCallbackLogger(l zerolog.Logger) CallbackOption {
	return func(f *CallbackFlow) {
		f.log = l
	}
}

func WithCallbackMetrics(m *metrics.Metrics) CallbackOption {
	return func(f *CallbackFlow) {
		f.metrics = m
	}
}

func NewCallbackFlow(c *Coordinator, backend authbackend.Client, pending PendingPathTaker, options ...CallbackOption) *CallbackFlow {
	f := &CallbackFlow{
		coordinator: c,
		backend:     backend,
		pending:     pending,
		timeout:     DefaultCallbackTimeout,
		log:         log.Logger.With().Str("component", "auth_callback").Logger(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Run executes the flow. It never blocks longer than the configured timeout waiting for
// a session, and on failure clears credential state before returning the error.
func (f *CallbackFlow) Run(ctx context.Context, req CallbackRequest) CallbackResult {
	res := CallbackResult{}
	step := func(s CallbackStep) {
		res.Steps = append(res.Steps, s)
		f.log.Debug().Str("step", string(s)).Msg("callback")
	}

	step(StepStart)
	step(StepCheckURL)
	if err := providerError(req.Query); err != nil {
		return f.fail(ctx, res, err, "provider_error")
	}

	events := make(chan authbackend.Event, 4)
	broker := f.coordinator.Broker()
	sub := broker.Subscribe(func(ev authbackend.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer func() {
		_ = broker.Unsubscribe(sub)
	}()

	deadline := time.NewTimer(f.timeout)
	defer deadline.Stop()

	var exchangeErr chan error
	if req.Exchange != nil {
		exchangeErr = make(chan error, 1)
		// A late exchange must not resurrect a session the flow already gave up on.
		exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		go func() {
			exchangeErr <- req.Exchange(exchangeCtx)
		}()
	}

	step(StepFetchSession)
	sess, err := f.backend.GetSession(ctx)
	if err != nil && !errors.Is(err, errors.ErrNoSession) {
		return f.fail(ctx, res, err, "session_error")
	}

	var signedIn *authbackend.Event
	if sess == nil {
		step(StepWaitForEvent)
	wait:
		for {
			select {
			case ev := <-events:
				if ev.Type == authbackend.EventSignedIn || ev.Type == authbackend.EventTokenRefreshed {
					signedIn = &ev
					break wait
				}
			case err := <-exchangeErr:
				if err != nil {
					return f.fail(ctx, res, errors.Wrapf(err, "code exchange"), "exchange_error")
				}
				// Success is confirmed by the signed-in event.
				exchangeErr = nil
			case <-deadline.C:
				return f.fail(ctx, res, errors.ErrTimeout, "timeout")
			case <-ctx.Done():
				return f.fail(context.WithoutCancel(ctx), res, ctx.Err(), "canceled")
			}
		}
	}

	step(StepReinitialize)
	var st State
	if signedIn != nil {
		st = f.coordinator.Store().reload(ctx, signedIn.Seq)
	} else {
		st = f.coordinator.Store().Initialize(ctx)
	}
	if !st.IsAuthenticated() {
		err := st.Err
		if err == nil {
			err = errors.ErrNoSession
		}
		return f.fail(ctx, res, err, "not_authenticated")
	}

	step(StepResolveRedirect)
	path, err := f.pending.Take(ctx, req.ClientKey)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		f.log.Warn().Err(err).Msg("failed to read pending redirect path")
	}
	res.Path = f.coordinator.Routes().SafeRedirect(path)

	step(StepNavigate)
	f.metrics.IncrementCallbackOutcome("success")
	return res
}

func (f *CallbackFlow) fail(ctx context.Context, res CallbackResult, err error, outcome string) CallbackResult {
	f.log.Warn().Err(err).Str("outcome", outcome).Msg("auth callback failed")
	f.coordinator.Store().Discard(ctx, err)
	f.metrics.IncrementCallbackOutcome(outcome)

	res.Steps = append(res.Steps, StepFailed)
	res.Err = err
	q := url.Values{}
	q.Set("error", err.Error())
	res.Path = f.coordinator.Routes().Auth + "?" + q.Encode()
	return res
}

func providerError(q url.Values) error {
	code := q.Get("error")
	if code == "" {
		return nil
	}
	desc := q.Get("error_description")
	if desc == "" {
		desc = code
	}
	if code == "access_denied" {
		return errors.Wrapf(errors.ErrAccessDenied, "%s", desc)
	}
	return errors.Wrapf(errors.ErrProviderRejected, "%s: %s", code, desc)
}
