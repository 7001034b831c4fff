// Package shell implements the slide-over form shell: form sessions opened
// in CREATE or UPDATE mode, edited, validated, submitted through a mutation,
// deleted behind a confirmation, or cancelled.
package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/model"
)

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultTestTimeout = 15 * time.Second
	maxUpdateAttempts  = 5
)

// Session close reasons, as recorded in metrics.
const (
	closeSubmitted = "submitted"
	closeDeleted   = "deleted"
	closeCancelled = "cancelled"
	closeExpired   = "expired"
)

// Engine manages the lifecycle of form sessions.
type Engine struct {
	catalog   *Catalog
	store     SessionStore
	exec      *mutation.Executor
	validator *form.Validator
	limiter   *mutation.TestLimiter
	indicator   config.TestIndicatorConfig
	ttl         time.Duration
	testTimeout time.Duration
	now         func() time.Time
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// Option configures optional dependencies.
type Option func(*Engine)

// WithTestLimiter bounds test runs per session.
func WithTestLimiter(l *mutation.TestLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithIndicator sets the test indicator timings.
func WithIndicator(cfg config.TestIndicatorConfig) Option {
	return func(e *Engine) { e.indicator = cfg }
}

// WithSessionTTL sets how long an untouched session lives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithTestTimeout bounds how long a pending test blocks the next one. It
// should cover one autobrr round trip.
func WithTestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.testTimeout = d
		}
	}
}

// WithMetrics records session metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now. For testing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a form shell engine.
func NewEngine(catalog *Catalog, store SessionStore, exec *mutation.Executor, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		store:     store,
		exec:      exec,
		validator: form.NewValidator(),
		indicator: config.TestIndicatorConfig{
			SuccessDelay: time.Second,
			SuccessHold:  2500 * time.Millisecond,
			FailureHold:  2500 * time.Millisecond,
		},
		ttl:         defaultSessionTTL,
		testTimeout: defaultTestTimeout,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the screens served by the engine.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Open creates a fresh session. UPDATE sessions load their entity first; if
// that fails no session is created.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (view model.ShellDescriptor, err error) {
	ctx, span := observability.StartSpan(ctx, "shell.open",
		observability.AttrScreen.String(req.Screen),
		observability.AttrEntityID.String(req.EntityID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	screen, ok := e.catalog.Get(req.Screen)
	if !ok {
		return model.ShellDescriptor{}, model.NewScreenNotFoundError(req.Screen)
	}
	if !req.Mode.Valid() {
		return model.ShellDescriptor{}, model.NewBadRequestError(fmt.Sprintf("unknown mode %q", req.Mode))
	}
	if screen.Parent != "" && req.ParentID == "" {
		return model.ShellDescriptor{}, model.NewBadRequestError(fmt.Sprintf("parent_id is required for %s", screen.ID))
	}

	var initial model.Values
	switch req.Mode {
	case model.ModeCreate:
		req.EntityID = ""
		initial = screen.Defaults(req).Clone()
	case model.ModeUpdate:
		if req.EntityID == "" {
			return model.ShellDescriptor{}, model.NewBadRequestError("id is required to edit an entity")
		}
		if screen.Fetch == nil {
			return model.ShellDescriptor{}, model.NewBadRequestError(fmt.Sprintf("%s cannot be edited", screen.EntityName))
		}
		loaded, err := screen.Fetch(ctx, req)
		if err != nil {
			observability.RequestLogger(ctx, e.logger).Warn("entity fetch failed",
				zap.String("screen", screen.ID),
				zap.String("entity_id", req.EntityID),
				zap.Error(err),
			)
			return model.ShellDescriptor{}, model.NewFetchFailedError(
				fmt.Sprintf("%s could not be loaded: %s", screen.EntityName, errorMessage(err)),
			)
		}
		initial = model.NewValues(loaded)
	}

	now := e.now().UTC()
	expires := now.Add(e.ttl)
	sess := model.FormSession{
		ID:            uuid.New().String(),
		Screen:        screen.ID,
		Mode:          req.Mode,
		EntityID:      req.EntityID,
		Owner:         model.UsernameFrom(ctx),
		InitialValues: initial,
		CurrentValues: initial.Clone(),
		State:         model.ShellOpen,
		Deletion:      model.DeletionIdle,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     &expires,
	}
	if err := e.store.Create(ctx, sess); err != nil {
		return model.ShellDescriptor{}, err
	}
	if e.metrics != nil {
		e.metrics.RecordSessionOpened(screen.ID, string(req.Mode))
	}
	observability.RequestLogger(ctx, e.logger).Debug("form session opened",
		zap.String("session_id", sess.ID),
		zap.String("screen", screen.ID),
		zap.String("mode", string(req.Mode)),
	)
	return e.view(screen, sess), nil
}

// Get returns the current view of a session.
func (e *Engine) Get(ctx context.Context, sessionID string) (model.ShellDescriptor, error) {
	sess, err := e.store.Get(ctx, model.UsernameFrom(ctx), sessionID)
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	screen, err := e.screenOf(sess)
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	return e.view(screen, sess), nil
}

// SetValues applies a patch of dotted paths to the working copy and clears
// the errors of the touched fields. Edits are accepted while a submit is in
// flight; the submitted payload was captured when the submit started. A
// patch that changes the discriminant is applied under the screen's type
// change policy before the other paths.
func (e *Engine) SetValues(ctx context.Context, sessionID string, patch map[string]any) (model.ShellDescriptor, error) {
	if len(patch) == 0 {
		return e.Get(ctx, sessionID)
	}
	paths := make([]string, 0, len(patch))
	for p := range patch {
		if p == "" || strings.HasPrefix(p, ".") || strings.HasSuffix(p, ".") || strings.Contains(p, "..") {
			return model.ShellDescriptor{}, model.NewBadRequestError(fmt.Sprintf("invalid field path %q", p))
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if d := screen.Discriminant; d != "" {
			if v, ok := patch[d]; ok {
				s.CurrentValues = screen.Policy.Apply(s.CurrentValues, s.InitialValues, d, v)
			}
		}
		for _, p := range paths {
			if p == screen.Discriminant {
				continue
			}
			s.CurrentValues.Set(p, patch[p])
		}
		s.FieldErrors = withoutFields(s.FieldErrors, paths)
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	observability.RequestLogger(ctx, e.logger).Debug("fields patched",
		zap.String("session_id", sessionID),
		zap.Any("patch", observability.RedactValues(patch, screen.SensitiveFields(sess.CurrentValues)...)),
	)
	return e.view(screen, sess), nil
}

// ChangeDiscriminant selects another sub-form and applies the screen's
// type change policy.
func (e *Engine) ChangeDiscriminant(ctx context.Context, sessionID string, value string) (model.ShellDescriptor, error) {
	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if screen.Discriminant == "" {
			return model.NewInvalidTransitionError(fmt.Sprintf("%s has no type to change", screen.EntityName))
		}
		s.CurrentValues = screen.Policy.Apply(s.CurrentValues, s.InitialValues, screen.Discriminant, value)
		s.FieldErrors = nil
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	observability.RequestLogger(ctx, e.logger).Debug("discriminant changed",
		zap.String("session_id", sessionID),
		zap.String("value", value),
		zap.Stringer("policy", screen.Policy),
	)
	return e.view(screen, sess), nil
}

// Reset restores the working copy to the snapshot taken at open time.
func (e *Engine) Reset(ctx context.Context, sessionID string) (model.ShellDescriptor, error) {
	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		s.CurrentValues = s.InitialValues.Clone()
		s.FieldErrors = nil
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	return e.view(screen, sess), nil
}

// SubmitOptions carries optional submit parameters.
type SubmitOptions struct {
	IdempotencyKey string
}

// Submit validates the working copy and, when valid, runs the create or
// update mutation once. Validation failures are stored on the session and
// returned as VALIDATION_ERROR without any backend call. A submit issued
// while another is pending returns SUBMIT_IN_PROGRESS. On success the
// session is closed; on failure it returns to OPEN with its values intact.
func (e *Engine) Submit(ctx context.Context, sessionID string, opts SubmitOptions) (resp model.SubmitResponse, err error) {
	ctx, span := observability.StartSpan(ctx, "shell.submit", observability.AttrSessionID.String(sessionID))
	defer func() { observability.EndSpanWithError(span, err) }()

	owner := model.UsernameFrom(ctx)
	var (
		screen  *Screen
		payload model.Values
		sess    model.FormSession
		invalid []model.FieldError
	)
	sess, err = e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if s.State == model.ShellSubmitting {
			return model.NewSubmitInProgressError()
		}
		invalid = e.validate(screen, s.CurrentValues)
		if len(invalid) > 0 {
			s.FieldErrors = invalid
			return nil
		}
		s.State = model.ShellSubmitting
		s.FieldErrors = nil
		payload = s.CurrentValues.Clone()
		return nil
	})
	if err != nil {
		if model.HasCode(err, model.ErrSubmitInProgress) && e.metrics != nil && screen != nil {
			e.metrics.RecordSubmitIgnored(screen.ID)
		}
		return model.SubmitResponse{}, err
	}
	if len(invalid) > 0 {
		if e.metrics != nil {
			e.metrics.RecordValidationFailure(screen.ID)
		}
		return model.SubmitResponse{}, model.NewValidationError(invalid)
	}

	req := mutation.Request{Kind: mutation.KindCreate, Values: payload, IdempotencyKey: opts.IdempotencyKey}
	if sess.Mode == model.ModeUpdate {
		req.Kind = mutation.KindUpdate
		req.EntityID = sess.EntityID
	}

	// The mutation outlives the caller's request: a disconnecting browser
	// must not leave the session stuck in SUBMITTING.
	out, runErr := e.exec.Run(context.WithoutCancel(ctx), screen.Binding, req)
	if runErr != nil {
		e.reopen(ctx, owner, sessionID)
		return model.SubmitResponse{}, runErr
	}

	e.close(ctx, owner, sessionID, screen.ID, closeSubmitted)
	return model.SubmitResponse{Status: model.SubmitClosed, Message: out.Message, Result: out.Result}, nil
}

// Cancel discards the session without side effects. Cancelling an unknown
// or already closed session succeeds.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	sess, err := e.store.Get(ctx, model.UsernameFrom(ctx), sessionID)
	if model.HasCode(err, model.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.close(ctx, sess.Owner, sessionID, sess.Screen, closeCancelled)
	return nil
}

// RequestDelete shows the delete confirmation. Only UPDATE sessions of
// screens that can delete may request it.
func (e *Engine) RequestDelete(ctx context.Context, sessionID string) (model.ShellDescriptor, error) {
	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if s.Mode != model.ModeUpdate || !screen.CanDelete() {
			return model.NewInvalidTransitionError("only saved entities can be removed")
		}
		if s.State != model.ShellOpen {
			return model.NewSubmitInProgressError()
		}
		s.Deletion = model.DeletionRequested
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	return e.view(screen, sess), nil
}

// CancelDelete dismisses the confirmation. Values are untouched.
func (e *Engine) CancelDelete(ctx context.Context, sessionID string) (model.ShellDescriptor, error) {
	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if s.Deletion == model.DeletionConfirmed {
			return model.NewInvalidTransitionError("deletion is already in progress")
		}
		s.Deletion = model.DeletionIdle
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	return e.view(screen, sess), nil
}

// ConfirmDelete runs the delete mutation for the session's entity, without
// field validation. It requires a prior RequestDelete. On success the
// session is closed; on failure the confirmation is dismissed and the
// session stays open.
func (e *Engine) ConfirmDelete(ctx context.Context, sessionID string) (resp model.SubmitResponse, err error) {
	ctx, span := observability.StartSpan(ctx, "shell.delete", observability.AttrSessionID.String(sessionID))
	defer func() { observability.EndSpanWithError(span, err) }()

	owner := model.UsernameFrom(ctx)
	var screen *Screen
	sess, err := e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if s.Deletion != model.DeletionRequested {
			return model.NewInvalidTransitionError("removal must be requested before it is confirmed")
		}
		s.Deletion = model.DeletionConfirmed
		return nil
	})
	if err != nil {
		return model.SubmitResponse{}, err
	}

	out, runErr := e.exec.Run(context.WithoutCancel(ctx), screen.Binding, mutation.Request{
		Kind:     mutation.KindDelete,
		EntityID: sess.EntityID,
	})
	if runErr != nil {
		_, _ = e.update(ctx, owner, sessionID, func(s *model.FormSession) error {
			s.Deletion = model.DeletionIdle
			return nil
		})
		return model.SubmitResponse{}, runErr
	}

	e.close(ctx, owner, sessionID, screen.ID, closeDeleted)
	return model.SubmitResponse{Status: model.SubmitClosed, Message: out.Message}, nil
}

// Test runs the screen's test action with the working copy. It never
// persists, never closes the session and never touches the query cache. A
// failing test is not an error: it is reported through the indicator.
func (e *Engine) Test(ctx context.Context, sessionID string) (view model.ShellDescriptor, err error) {
	ctx, span := observability.StartSpan(ctx, "shell.test", observability.AttrSessionID.String(sessionID))
	defer func() { observability.EndSpanWithError(span, err) }()

	owner := model.UsernameFrom(ctx)
	var (
		screen  *Screen
		payload model.Values
	)
	_, err = e.mutate(ctx, sessionID, func(s *model.FormSession) error {
		var err error
		if screen, err = e.screenOf(*s); err != nil {
			return err
		}
		if !screen.Binding.CanTest() {
			return model.NewInvalidTransitionError(fmt.Sprintf("%s cannot be tested", screen.EntityName))
		}
		if screen.TestNeedsEntity && s.Mode != model.ModeUpdate {
			return model.NewInvalidTransitionError(fmt.Sprintf("save the %s before testing it", strings.ToLower(screen.EntityName)))
		}
		if e.testRunning(s.Test) {
			return model.NewInvalidTransitionError("a test is already running")
		}
		if !e.limiter.Allow(s.ID) {
			return model.NewRateLimitedError()
		}
		started := e.now().UTC()
		s.Test = model.TestRun{Result: model.TestPending, StartedAt: &started}
		payload = s.CurrentValues.Clone()
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}

	out, runErr := e.exec.Run(context.WithoutCancel(ctx), screen.Binding, mutation.Request{
		Kind:   mutation.KindTest,
		Values: payload,
	})
	result := model.TestSuccess
	if runErr != nil {
		result = model.TestFailure
	}

	sess, err := e.update(ctx, owner, sessionID, func(s *model.FormSession) error {
		finished := e.now().UTC()
		s.Test.Result = result
		s.Test.Message = out.Message
		s.Test.FinishedAt = &finished
		return nil
	})
	if err != nil {
		return model.ShellDescriptor{}, err
	}
	return e.view(screen, sess), nil
}

// testRunning reports whether run is still in flight. A pending run older
// than the test timeout was abandoned, for example by a restart mid-test,
// and counts as finished.
func (e *Engine) testRunning(run model.TestRun) bool {
	if run.Result != model.TestPending {
		return false
	}
	return run.StartedAt == nil || e.now().Sub(*run.StartedAt) < e.testTimeout
}

// Sweep removes sessions that expired without being closed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	expired, err := e.store.FindExpired(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}
	n := 0
	for _, s := range expired {
		if err := e.store.Delete(ctx, s.Owner, s.ID); err != nil {
			if !model.HasCode(err, model.ErrSessionNotFound) {
				e.logger.Warn("expired session delete failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			continue
		}
		e.closed(s.ID, s.Screen, closeExpired)
		n++
	}
	if n > 0 {
		e.logger.Info("expired form sessions removed", zap.Int("count", n))
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}

// --- internals ---

func (e *Engine) screenOf(s model.FormSession) (*Screen, error) {
	screen, ok := e.catalog.Get(s.Screen)
	if !ok {
		return nil, model.NewScreenNotFoundError(s.Screen)
	}
	return screen, nil
}

func (e *Engine) validate(screen *Screen, values model.Values) []model.FieldError {
	errs := e.validator.Check(values, screen.Form.Rules(values))
	if screen.Validate == nil {
		return errs
	}
	seen := make(map[string]bool, len(errs))
	for _, fe := range errs {
		seen[fe.Field] = true
	}
	for _, fe := range screen.Validate(values) {
		if !seen[fe.Field] {
			errs = append(errs, fe)
			seen[fe.Field] = true
		}
	}
	return errs
}

// mutate loads the caller's session, applies fn and stores it, retrying on
// version conflicts. fn may run more than once.
func (e *Engine) mutate(ctx context.Context, sessionID string, fn func(*model.FormSession) error) (model.FormSession, error) {
	return e.update(ctx, model.UsernameFrom(ctx), sessionID, fn)
}

func (e *Engine) update(ctx context.Context, owner, sessionID string, fn func(*model.FormSession) error) (model.FormSession, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		sess, err := e.store.Get(ctx, owner, sessionID)
		if err != nil {
			return model.FormSession{}, err
		}
		if err := fn(&sess); err != nil {
			return model.FormSession{}, err
		}
		now := e.now().UTC()
		expires := now.Add(e.ttl)
		sess.UpdatedAt = now
		sess.ExpiresAt = &expires

		err = e.store.Update(ctx, sess)
		if err == nil {
			sess.Version++
			return sess, nil
		}
		if !model.HasCode(err, model.ErrConflict) {
			return model.FormSession{}, err
		}
		lastErr = err
	}
	return model.FormSession{}, lastErr
}

// reopen returns a failed submit to OPEN. A session cancelled while the
// mutation was in flight is gone, which is fine.
func (e *Engine) reopen(ctx context.Context, owner, sessionID string) {
	_, err := e.update(context.WithoutCancel(ctx), owner, sessionID, func(s *model.FormSession) error {
		s.State = model.ShellOpen
		return nil
	})
	if err != nil && !model.HasCode(err, model.ErrSessionNotFound) {
		e.logger.Error("reopening session after failed submit", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// close deletes a session. Already closed sessions are ignored.
func (e *Engine) close(ctx context.Context, owner, sessionID, screenID, reason string) {
	err := e.store.Delete(context.WithoutCancel(ctx), owner, sessionID)
	if model.HasCode(err, model.ErrSessionNotFound) {
		return
	}
	if err != nil {
		e.logger.Error("closing session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	e.closed(sessionID, screenID, reason)
}

func (e *Engine) closed(sessionID, screenID, reason string) {
	e.limiter.Forget(sessionID)
	if e.metrics != nil {
		e.metrics.RecordSessionClosed(screenID, reason)
	}
	e.logger.Debug("form session closed",
		zap.String("session_id", sessionID),
		zap.String("screen", screenID),
		zap.String("reason", reason),
	)
}

func withoutFields(errs []model.FieldError, paths []string) []model.FieldError {
	if len(errs) == 0 {
		return errs
	}
	touched := make(map[string]bool, len(paths))
	for _, p := range paths {
		touched[p] = true
	}
	var out []model.FieldError
	for _, fe := range errs {
		if !touched[fe.Field] {
			out = append(out, fe)
		}
	}
	return out
}

func errorMessage(err error) string {
	if env, ok := err.(*model.ErrorEnvelope); ok {
		return env.Message
	}
	return err.Error()
}
