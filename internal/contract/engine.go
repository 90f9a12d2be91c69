package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	StateSelected State = iota
	StateSnapshotted
	StateSigning
	StateRendered
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateSnapshotted:
		return "snapshotted"
	case StateSigning:
		return "signing"
	case StateRendered:
		return "rendered"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRendered || s == StateAbandoned
}

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("invalid session state")

// ErrAbandoned is returned when the session was abandoned while an
// operation was in progress.
var ErrAbandoned = errors.New("session abandoned")

// Store is the part of the record store the engine needs: a single read
// of the client and the contract log.
type Store interface {
	Get(ctx context.Context, clientID int64) (record.Client, error)
	RecordContract(ctx context.Context, e record.ContractLogEntry, place func() error) error
}

// Engine starts contract sessions.
type Engine struct {
	store    Store
	template Template
	branding record.Branding
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTemplate replaces the built-in template.
func WithTemplate(t Template) Option {
	return func(e *Engine) {
		e.template = t
	}
}

// WithBranding sets the branding handed to rendering.
func WithBranding(b record.Branding) Option {
	return func(e *Engine) {
		e.branding = b
	}
}

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides contract id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates an engine using the built-in template and UUIDv7
// contract ids.
func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		template: DefaultTemplate(),
		now:      time.Now,
		newID:    newContractID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newContractID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Begin starts a session for one client in the Selected state.
func (e *Engine) Begin(clientID int64) *Session {
	return &Session{engine: e, clientID: clientID, state: StateSelected}
}

// Result describes a rendered contract.
type Result struct {
	ContractID  string
	ClientID    int64
	Path        string
	Digest      string
	GeneratedAt time.Time
}

// Session generates one contract for one client.
//
// Thread-safety: methods may be called from different goroutines, but
// the session advances strictly in order. Abandon may be called while
// Snapshot or Sign is blocked; the blocked call then fails with ErrAbandoned.
type Session struct {
	engine   *Engine
	clientID int64

	mu        sync.Mutex
	state     State
	busy      bool
	rendering bool
	snapshot  record.Snapshot
	signature Signature
	result    Result
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientID returns the selected client.
func (s *Session) ClientID() int64 {
	return s.clientID
}

// Result returns the rendered contract. Only valid in StateRendered.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == StateRendered
}

// Snapshot reads the client once and freezes it. Later changes to the
// client do not affect the session. Fails with a not-found error if the
// client no longer exists; the session then stays Selected.
func (s *Session) Snapshot(ctx context.Context) (record.Snapshot, error) {
	const op = "snapshot"

	if err := s.enter(op, StateSelected); err != nil {
		return record.Snapshot{}, err
	}

	c, err := s.engine.store.Get(ctx, s.clientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == StateAbandoned {
		return record.Snapshot{}, fmt.Errorf("%s: %w", op, ErrAbandoned)
	}
	if err != nil {
		return record.Snapshot{}, err
	}

	s.snapshot = record.NewSnapshot(c, s.engine.now())
	s.state = StateSnapshotted
	slog.Debug("contract snapshot taken", "client", s.clientID, "fields", len(c.Fields))
	return s.snapshot, nil
}

// Sign blocks until the capturer returns a signature.
//
// Cancellation (ctx done or ErrCaptureCancelled) abandons the session.
// A blank signature or any other capture failure leaves the session
// Snapshotted so the signer can try again.
func (s *Session) Sign(ctx context.Context, c Capturer) error {
	const op = "sign"

	if err := s.enter(op, StateSnapshotted); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateSigning
	s.mu.Unlock()

	sig, err := c.Capture(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		sig, err = sig.Normalize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == StateAbandoned {
		return fmt.Errorf("%s: %w", op, ErrAbandoned)
	}

	switch {
	case err == nil:
		s.signature = sig
		return nil
	case errors.Is(err, ErrCaptureCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.abandonLocked()
		slog.Info("contract signing cancelled", "client", s.clientID)
		return fmt.Errorf("%s: %w", op, err)
	default:
		s.state = StateSnapshotted
		return err
	}
}

// Render builds the document and places it at outPath in one atomic
// step, then logs it in the contract store. Nothing is left at outPath
// unless both succeed.
//
// An unwritable path returns an I/O error and keeps the session in
// Signing so the caller can retry with another path. Cancellation
// abandons the session.
func (s *Session) Render(ctx context.Context, outPath string) (Result, error) {
	const op = "render"

	if err := s.enter(op, StateSigning); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	snap, sig := s.snapshot, s.signature
	s.rendering = true
	s.mu.Unlock()

	res, err := s.engine.render(ctx, snap, sig, outPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.rendering = false
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.abandonLocked()
		}
		return Result{}, err
	}

	s.result = res
	s.state = StateRendered
	s.signature = Signature{}
	return res, nil
}

// Abandon discards all in-progress state. It is a no-op on an already
// abandoned session and fails on a rendered one. A running Render cannot
// be abandoned; cancel its context instead.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateAbandoned:
		return nil
	case s.state == StateRendered:
		return fmt.Errorf("abandon: %w: contract already rendered", ErrInvalidState)
	case s.rendering:
		return fmt.Errorf("abandon: %w: render in progress", ErrInvalidState)
	}
	s.abandonLocked()
	slog.Debug("contract session abandoned", "client", s.clientID)
	return nil
}

func (s *Session) abandonLocked() {
	s.state = StateAbandoned
	s.snapshot = record.Snapshot{}
	s.signature = Signature{}
}

// enter checks the current state and marks the session busy.
func (s *Session) enter(op string, want State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAbandoned {
		return fmt.Errorf("%s: %w", op, ErrAbandoned)
	}
	if s.busy || s.state != want {
		return fmt.Errorf("%s: %w: session is %s, need %s", op, ErrInvalidState, s.state, want)
	}
	s.busy = true
	return nil
}

// render is the effectful half of Render: pure document construction,
// one pending file, and the logged atomic placement.
func (e *Engine) render(ctx context.Context, snap record.Snapshot, sig Signature, outPath string) (Result, error) {
	const op = "render"

	id := e.newID()
	doc, err := BuildDocument(snap, sig, e.template, e.branding, Meta{ContractID: id})
	if err != nil {
		return Result{}, err
	}
	digest, err := snap.Digest()
	if err != nil {
		return Result{}, fmt.Errorf("%s: snapshot digest: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	pf, err := renameio.NewPendingFile(outPath,
		renameio.WithTempDir(filepath.Dir(outPath)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return Result{}, ioErr(op, outPath, snap.ClientID(), err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(doc); err != nil {
		return Result{}, ioErr(op, outPath, snap.ClientID(), fmt.Errorf("write document: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	entry := record.ContractLogEntry{
		ID:          id,
		ClientID:    snap.ClientID(),
		GeneratedAt: snap.TakenAt(),
		Path:        outPath,
		Digest:      digest,
		Snapshot:    snap,
	}
	err = e.store.RecordContract(ctx, entry, func() error {
		if err := pf.CloseAtomicallyReplace(); err != nil {
			return ioErr(op, outPath, snap.ClientID(), fmt.Errorf("place document: %w", err))
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	slog.Info("contract rendered", "client", snap.ClientID(), "contract", id, "path", outPath)
	return Result{
		ContractID:  id,
		ClientID:    snap.ClientID(),
		Path:        outPath,
		Digest:      digest,
		GeneratedAt: snap.TakenAt(),
	}, nil
}

func ioErr(op, path string, clientID int64, err error) error {
	e := record.NewIOError(op, path, err)
	e.ClientID = clientID
	return e
}
