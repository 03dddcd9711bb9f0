// Package translate drives asynchronous translation requests against the
// bundle store: read the current table, call the external translation
// service, merge the result, persist atomically, and signal completion
// exactly once per request.
//
// Each request moves strictly through
//
//	Idle → Reading → Translating → Merging → Writing → Completed | Failed
//
// Requests run on a shared worker pool and do not block the caller.
// Concurrent requests are permitted and never block each other; writes to
// overlapping languages are last-writer-wins at the store layer. Callers
// that need strict ordering must serialize their own calls.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/langtab/langtab/bundle"
	"github.com/langtab/langtab/table"
)

// Translator is the external translation capability: translate a batch of
// texts from one language into several, seeded with the current table.
// Implementations may take as long as they like; exactly one result
// (table or error) is expected per call. Errors are surfaced to the
// request verbatim.
type Translator interface {
	Translate(ctx context.Context, texts []string, from string, to []string, seed *table.Table) (*table.Table, error)
}

// Sentinel errors for requests that fail before any work is scheduled.
var (
	// ErrDisabled is returned when the store is switched off; mutating
	// operations fail immediately and leave no trace.
	ErrDisabled = errors.New("translation store is disabled")
	// ErrNoTranslationService is returned when no Translator is configured.
	ErrNoTranslationService = errors.New("no translation service configured")
)

// IOError wraps a persistence failure during the Writing stage. The
// in-memory merge is discarded; the previously committed root stays
// current and usable.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("persisting translation table: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Request state machine
// ---------------------------------------------------------------------------

// State is the lifecycle stage of a request.
type State int

const (
	StateIdle State = iota
	StateReading
	StateTranslating
	StateMerging
	StateWriting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateTranslating:
		return "translating"
	case StateMerging:
		return "merging"
	case StateWriting:
		return "writing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Request is the pending-operation handle for one translate call. It owns
// a snapshot of its inputs; nothing is shared with other requests beyond
// the store itself.
type Request struct {
	mu    sync.Mutex
	state State
	err   error

	done chan struct{}
	once sync.Once
}

func newRequest() *Request {
	return &Request{state: StateIdle, done: make(chan struct{})}
}

// Done is closed when the request completes or fails.
func (r *Request) Done() <-chan struct{} { return r.done }

// State returns the request's current lifecycle stage.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure cause. Valid once Done is closed; nil means
// the request completed successfully.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the request settles or ctx is canceled. The request
// itself keeps running on cancellation; in-flight disk writes and the
// external call are never abandoned mid-write.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Request) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Coordinator
// ---------------------------------------------------------------------------

const defaultPoolSize = 8

// Coordinator schedules translation requests against one bundle store.
type Coordinator struct {
	store      *bundle.Store
	translator Translator
	pool       *ants.Pool
	disabled   atomic.Bool

	mu        sync.Mutex
	onChange  []func()
	onFailure []func(error)
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorConfig)

type coordinatorConfig struct {
	poolSize int
	disabled bool
}

// WithPoolSize sets the size of the background worker pool.
func WithPoolSize(n int) CoordinatorOption {
	return func(c *coordinatorConfig) { c.poolSize = n }
}

// WithDisabled opens the coordinator in the disabled state.
func WithDisabled(disabled bool) CoordinatorOption {
	return func(c *coordinatorConfig) { c.disabled = disabled }
}

// NewCoordinator returns a coordinator over store using translator.
// translator may be nil; requests then fail with ErrNoTranslationService.
func NewCoordinator(store *bundle.Store, translator Translator, opts ...CoordinatorOption) (*Coordinator, error) {
	cfg := coordinatorConfig{poolSize: defaultPoolSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := ants.NewPool(cfg.poolSize)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	c := &Coordinator{store: store, translator: translator, pool: pool}
	c.disabled.Store(cfg.disabled)
	return c, nil
}

// Close releases the worker pool. In-flight requests run to completion.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// SetDisabled switches the store on or off. While disabled, Translate and
// Remove fail immediately with ErrDisabled.
func (c *Coordinator) SetDisabled(disabled bool) {
	c.disabled.Store(disabled)
}

// Disabled reports whether the store is switched off.
func (c *Coordinator) Disabled() bool {
	return c.disabled.Load()
}

// OnChange registers fn to be called once per successfully committed
// write. Past writes are never replayed to new subscribers.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// OnFailure registers fn to receive the cause of every failed request.
func (c *Coordinator) OnFailure(fn func(error)) {
	c.mu.Lock()
	c.onFailure = append(c.onFailure, fn)
	c.mu.Unlock()
}

// Translate schedules one translation request for texts from the source
// language into to. An empty to defaults to every supported language
// except from. The returned Request settles exactly once.
func (c *Coordinator) Translate(ctx context.Context, texts []string, from string, to []string) *Request {
	r := newRequest()

	if c.Disabled() {
		c.fail(r, ErrDisabled)
		return r
	}

	// The request owns copies of its inputs.
	texts = append([]string(nil), texts...)
	targets := c.targetLanguages(from, to)
	all := append(append([]string(nil), targets...), from)

	if err := c.pool.Submit(func() { c.run(ctx, r, texts, from, targets, all) }); err != nil {
		c.fail(r, fmt.Errorf("scheduling translation: %w", err))
	}
	return r
}

// Remove schedules a bulk key removal across every supported language.
// Like Translate it commits through an atomic write and emits a change
// notification on success.
func (c *Coordinator) Remove(ctx context.Context, keys []string) *Request {
	r := newRequest()

	if c.Disabled() {
		c.fail(r, ErrDisabled)
		return r
	}

	keys = append([]string(nil), keys...)
	if err := c.pool.Submit(func() {
		r.setState(StateReading)
		t := c.store.Load()

		r.setState(StateMerging)
		t.Remove(keys)

		r.setState(StateWriting)
		if _, err := c.store.WriteAtomic(t); err != nil {
			c.fail(r, &IOError{Err: err})
			return
		}
		c.complete(r)
	}); err != nil {
		c.fail(r, fmt.Errorf("scheduling removal: %w", err))
	}
	return r
}

// targetLanguages resolves an explicit target list or defaults to the
// full supported set minus the source language.
func (c *Coordinator) targetLanguages(from string, to []string) []string {
	if len(to) > 0 {
		return append([]string(nil), to...)
	}
	var targets []string
	for _, lang := range c.store.Languages() {
		if lang != from {
			targets = append(targets, lang)
		}
	}
	return targets
}

// run executes one translation request in order:
// Reading → Translating → Merging → Writing → notify.
func (c *Coordinator) run(ctx context.Context, r *Request, texts []string, from string, targets, all []string) {
	r.setState(StateReading)
	seed := c.store.LoadLanguages(all)

	if c.translator == nil {
		c.fail(r, ErrNoTranslationService)
		return
	}

	r.setState(StateTranslating)
	result, err := c.translator.Translate(ctx, texts, from, targets, seed)
	if err != nil {
		// Capability failures surface verbatim.
		c.fail(r, err)
		return
	}

	// Re-read before merging: the table may have been modified by a
	// concurrent request while the external call was in flight.
	r.setState(StateMerging)
	fresh := c.store.LoadLanguages(all)
	fresh.Merge(result)

	r.setState(StateWriting)
	if _, err := c.store.WriteAtomic(fresh, all...); err != nil {
		c.fail(r, &IOError{Err: err})
		return
	}

	c.complete(r)
}

// complete settles r successfully and notifies change subscribers.
// The once guard makes settling idempotent.
func (c *Coordinator) complete(r *Request) {
	r.once.Do(func() {
		r.mu.Lock()
		r.state = StateCompleted
		r.mu.Unlock()
		close(r.done)

		for _, fn := range c.changeSubscribers() {
			fn()
		}
	})
}

// fail settles r with err and notifies failure subscribers.
func (c *Coordinator) fail(r *Request, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.state = StateFailed
		r.err = err
		r.mu.Unlock()
		close(r.done)

		for _, fn := range c.failureSubscribers() {
			fn(err)
		}
	})
}

func (c *Coordinator) changeSubscribers() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(){}, c.onChange...)
}

func (c *Coordinator) failureSubscribers() []func(error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(error){}, c.onFailure...)
}
