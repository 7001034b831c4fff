package mutation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/notify"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/model"
)

// Status is the lifecycle state of a mutation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is one mutation. Values is the payload for create, update and
// test; EntityID is the target of update and delete.
type Request struct {
	Kind           Kind
	EntityID       string
	Values         model.Values
	IdempotencyKey string
}

// Outcome describes a finished (or, for observers, pending) mutation.
type Outcome struct {
	Kind     Kind
	Resource string
	EntityID string
	Status   Status
	Message  string
	Result   model.Values
	Replayed bool
	Duration time.Duration
	Err      error
}

// Observer receives every outcome transition.
type Observer interface {
	OnMutation(ctx context.Context, o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome)

// OnMutation implements Observer.
func (f ObserverFunc) OnMutation(ctx context.Context, o Outcome) { f(ctx, o) }

// Executor runs mutations. Each run is a single attempt.
type Executor struct {
	cache       *querycache.Cache
	notifier    notify.Notifier
	idempotency IdempotencyStore
	idemTTL     time.Duration
	observers   []Observer
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// Option configures optional dependencies.
type Option func(*Executor)

// WithIdempotencyStore enables submit deduplication.
func WithIdempotencyStore(store IdempotencyStore, ttl time.Duration) Option {
	return func(e *Executor) {
		e.idempotency = store
		e.idemTTL = ttl
	}
}

// WithObserver adds an outcome observer.
func WithObserver(obs Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, obs) }
}

// WithMetrics records mutation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor. notifier may be nil.
func NewExecutor(cache *querycache.Cache, notifier notify.Notifier, opts ...Option) *Executor {
	e := &Executor{
		cache:    cache,
		notifier: notifier,
		idemTTL:  24 * time.Hour,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req through b. On success of create, update and delete it
// invalidates the resource's list key, the entity's detail key and the keys
// named by b.Invalidates, whether or not the caller is still interested in
// the result. The returned error
// is a *model.ErrorEnvelope; the outcome is populated either way.
func (e *Executor) Run(ctx context.Context, b Binding, req Request) (Outcome, error) {
	start := time.Now()
	out := Outcome{Kind: req.Kind, Resource: b.Resource, EntityID: req.EntityID, Status: StatusPending}
	e.notifyObservers(ctx, out)

	ctx, span := observability.StartSpan(ctx, "mutation."+string(req.Kind),
		observability.AttrResource.String(b.Resource),
		observability.AttrMutation.String(string(req.Kind)),
		observability.AttrEntityID.String(req.EntityID),
	)

	result, err := e.run(ctx, b, req, &out)
	out.Duration = time.Since(start)
	if err != nil {
		out.Status = StatusError
		out.Err = err
		out.Message = b.failureMessage(req.Kind, err)
		observability.EndSpanWithError(span, err)
		e.finish(ctx, b, req, out)
		return out, e.envelope(req.Kind, out.Message, err)
	}
	span.End()

	out.Status = StatusSuccess
	out.Result = result
	if out.Message == "" {
		out.Message = b.successMessage(req.Kind)
	}
	e.finish(ctx, b, req, out)
	return out, nil
}

func (e *Executor) run(ctx context.Context, b Binding, req Request, out *Outcome) (model.Values, error) {
	var (
		idemKey string
		hash    string
	)
	if req.IdempotencyKey != "" && e.idempotency != nil && (req.Kind == KindCreate || req.Kind == KindUpdate) {
		idemKey = FormatIdempotencyKey(b.Resource, req.IdempotencyKey)
		hash = hashInput(req.Kind, req.EntityID, req.Values)

		cached, found, err := e.idempotency.Check(ctx, idemKey, hash)
		if err != nil {
			return nil, err
		}
		if found {
			out.Replayed = true
			out.EntityID = cached.EntityID
			out.Message = cached.Message
			return cached.Values, nil
		}
	}

	var (
		result model.Values
		err    error
	)
	switch req.Kind {
	case KindCreate:
		if b.Create == nil {
			return nil, ErrNotBound
		}
		result, err = b.Create(ctx, req.Values)
		if err == nil {
			out.EntityID = apiclient.EntityID(result)
		}
	case KindUpdate:
		if b.Update == nil {
			return nil, ErrNotBound
		}
		result, err = b.Update(ctx, req.EntityID, req.Values)
	case KindDelete:
		if b.Delete == nil {
			return nil, ErrNotBound
		}
		err = b.Delete(ctx, req.EntityID)
	case KindTest:
		if b.Test == nil {
			return nil, ErrNotBound
		}
		err = b.Test(ctx, req.Values)
	default:
		return nil, fmt.Errorf("mutation: unknown kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		stored := StoredResult{EntityID: out.EntityID, Values: result, Message: b.successMessage(req.Kind)}
		if err := e.idempotency.Store(ctx, idemKey, hash, stored, e.idemTTL); err != nil {
			e.logger.Warn("idempotency store failed", zap.String("key", idemKey), zap.Error(err))
		}
	}
	return result, nil
}

// finish invalidates, toasts, records and notifies observers.
func (e *Executor) finish(ctx context.Context, b Binding, req Request, out Outcome) {
	if out.Status == StatusSuccess && out.Kind != KindTest && e.cache != nil {
		keys := []querycache.Key{querycache.ListKey(b.Resource)}
		if out.EntityID != "" {
			keys = append(keys, querycache.DetailKey(b.Resource, out.EntityID))
		}
		if b.Invalidates != nil {
			keys = append(keys, b.Invalidates(out, req.Values)...)
		}
		if err := e.cache.Invalidate(context.WithoutCancel(ctx), keys...); err != nil {
			e.logger.Error("cache invalidation failed",
				zap.String("resource", b.Resource),
				zap.Error(err),
			)
		}
	}

	if e.notifier != nil {
		switch {
		case out.Status == StatusError && out.Kind != KindTest:
			e.notifier.Notify(notify.KindError, out.Message)
		case out.Status == StatusSuccess && (out.Kind != KindTest || b.SuccessMessages[KindTest] != ""):
			e.notifier.Notify(notify.KindSuccess, out.Message)
		}
	}

	if e.metrics != nil {
		if out.Kind == KindTest {
			e.metrics.RecordTestRun(b.Resource, string(out.Status))
		} else {
			e.metrics.RecordMutation(b.Resource, string(out.Kind), string(out.Status), out.Duration)
		}
	}

	logger := observability.RequestLogger(ctx, e.logger)
	if out.Status == StatusError {
		logger.Warn("mutation failed",
			zap.String("resource", b.Resource),
			zap.String("kind", string(out.Kind)),
			zap.String("entity_id", out.EntityID),
			zap.Error(out.Err),
		)
	} else {
		logger.Info("mutation succeeded",
			zap.String("resource", b.Resource),
			zap.String("kind", string(out.Kind)),
			zap.String("entity_id", out.EntityID),
			zap.Bool("replayed", out.Replayed),
			zap.Duration("duration", out.Duration),
		)
	}

	e.notifyObservers(ctx, out)
}

func (e *Executor) notifyObservers(ctx context.Context, out Outcome) {
	for _, obs := range e.observers {
		obs.OnMutation(ctx, out)
	}
}

// envelope maps a mutation error to the BFF error it is reported as.
func (e *Executor) envelope(kind Kind, message string, err error) *model.ErrorEnvelope {
	if env, ok := err.(*model.ErrorEnvelope); ok {
		switch env.Code {
		case model.ErrConflict, model.ErrBackendUnavailable, model.ErrBackendTimeout:
			return env
		}
	}
	if err == ErrNotBound {
		return model.NewBadRequestError(fmt.Sprintf("%s is not supported for this screen", kind))
	}
	return model.NewMutationFailedError(message)
}
