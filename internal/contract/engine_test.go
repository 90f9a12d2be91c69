package contract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
	"github.com/Alltagsbruecke/SignUp-APP/internal/store"
	"github.com/Alltagsbruecke/SignUp-APP/internal/testutil"
)

type testEnv struct {
	store  *store.Store
	engine *Engine
	dir    string
	client record.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	clock := testutil.NewStepClock(testutil.DefaultStart, time.Minute)

	s, err := store.Open(filepath.Join(dir, "clients.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c, err := s.Create(context.Background(), "Anna Müller", []record.Field{{Key: "Phone", Value: "0228 123456"}})
	require.NoError(t, err)

	e := NewEngine(s,
		WithBranding(testBranding()),
		WithClock(clock.Now),
		WithIDGenerator(testutil.NewSequentialIDs("contract").Generate),
	)
	return &testEnv{store: s, engine: e, dir: dir, client: c}
}

func signWith(sig Signature) Capturer {
	return CaptureFunc(func(context.Context) (Signature, error) { return sig, nil })
}

func TestSession_SixteenBitSignatureRenders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out := filepath.Join(env.dir, "vertrag.pdf")

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, signWith(rgba64Signature(t, true))))

	res, err := s.Render(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, StateRendered, s.State())
	assert.FileExists(t, res.Path)
}

func TestSession_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out := filepath.Join(env.dir, "vertrag.pdf")

	s := env.engine.Begin(env.client.ID)
	assert.Equal(t, StateSelected, s.State())

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSnapshotted, s.State())
	assert.Equal(t, "Anna Müller", snap.Name())

	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))
	assert.Equal(t, StateSigning, s.State())

	res, err := s.Render(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, StateRendered, s.State())
	assert.Equal(t, "contract-0001", res.ContractID)
	assert.Equal(t, out, res.Path)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)

	entries, err := env.store.ListContracts(ctx, env.client.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.ContractID, entries[0].ID)
	assert.Equal(t, res.Digest, entries[0].Digest)

	got, ok := s.Result()
	assert.True(t, ok)
	assert.Equal(t, res, got)
}

func TestSession_SnapshotIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out := filepath.Join(env.dir, "vertrag.pdf")

	s := env.engine.Begin(env.client.ID)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	want, err := snap.Digest()
	require.NoError(t, err)

	// Edits between snapshot and render do not reach the contract.
	require.NoError(t, env.store.Update(ctx, env.client.ID, record.Update{
		Set: record.Fields{{Key: "Phone", Value: "999"}},
	}))

	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))
	res, err := s.Render(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, want, res.Digest)
	before, err := os.ReadFile(out)
	require.NoError(t, err)

	// Edits after render do not change the generated contract either.
	require.NoError(t, env.store.AddField(ctx, env.client.ID, "City", "Bonn"))
	after, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := env.store.ListContracts(ctx, env.client.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	phone, _ := entries[0].Snapshot.Value("Phone")
	assert.Equal(t, "0228 123456", phone)
	assert.False(t, entries[0].Snapshot.Fields().Has("City"))
}

func TestSession_ContractSurvivesClientDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	out := filepath.Join(env.dir, "vertrag.pdf")

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))
	_, err = s.Render(ctx, out)
	require.NoError(t, err)

	require.NoError(t, env.store.Delete(ctx, env.client.ID))

	_, err = os.Stat(out)
	assert.NoError(t, err)
	entries, err := env.store.ListContracts(ctx, env.client.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSession_SnapshotNotFound(t *testing.T) {
	env := newTestEnv(t)

	s := env.engine.Begin(42)
	_, err := s.Snapshot(context.Background())
	assert.True(t, record.IsNotFound(err))
	assert.Equal(t, StateSelected, s.State())
}

func TestSession_BlankSignatureAllowsRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)

	err = s.Sign(ctx, signWith(Signature{Width: 400, Height: 160}))
	assert.True(t, record.IsValidation(err))
	assert.Equal(t, StateSnapshotted, s.State())

	_, err = s.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, s.Sign(ctx, signWith(pngSignature(t, true))))
	assert.Equal(t, StateSigning, s.State())
}

func TestSession_CaptureCancelledAbandons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)

	err = s.Sign(ctx, CaptureFunc(func(context.Context) (Signature, error) {
		return Signature{}, ErrCaptureCancelled
	}))
	assert.ErrorIs(t, err, ErrCaptureCancelled)
	assert.Equal(t, StateAbandoned, s.State())

	_, err = s.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	assert.ErrorIs(t, err, ErrAbandoned)
	assertNoFiles(t, env.dir, "vertrag.pdf")
}

func TestSession_ContextCancelledDuringCapture(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)

	err = s.Sign(ctx, CaptureFunc(func(ctx context.Context) (Signature, error) {
		cancel()
		<-ctx.Done()
		return Signature{}, ctx.Err()
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAbandoned, s.State())
}

func TestSession_AbandonWhileSigning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Sign(ctx, CaptureFunc(func(context.Context) (Signature, error) {
			close(started)
			<-release
			return strokeSignature(), nil
		}))
	}()

	<-started
	assert.Equal(t, StateSigning, s.State())
	require.NoError(t, s.Abandon())
	close(release)

	assert.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, StateAbandoned, s.State())
}

func TestSession_RenderCancelledLeavesNoFile(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))

	cancel()
	_, err = s.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAbandoned, s.State())
	assertNoFiles(t, env.dir, "vertrag.pdf")

	entries, err := env.store.ListContracts(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSession_UnwritablePathAllowsRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))

	bad := filepath.Join(env.dir, "missing", "vertrag.pdf")
	_, err = s.Render(ctx, bad)
	require.Error(t, err)
	assert.True(t, record.IsIO(err))
	var re *record.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, bad, re.Path)
	assert.Equal(t, StateSigning, s.State())

	res, err := s.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	require.NoError(t, err)
	assert.Equal(t, StateRendered, s.State())
	assert.Equal(t, "contract-0002", res.ContractID)
}

func TestSession_OutOfOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	assert.ErrorIs(t, s.Sign(ctx, signWith(strokeSignature())), ErrInvalidState)
	_, err := s.Render(ctx, filepath.Join(env.dir, "x.pdf"))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Snapshot(ctx)
	require.NoError(t, err)
	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSession_Abandon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.engine.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Abandon())
	require.NoError(t, s.Abandon())
	assert.Equal(t, StateAbandoned, s.State())
	assert.True(t, s.State().Terminal())

	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrAbandoned)

	done := env.engine.Begin(env.client.ID)
	_, err = done.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, done.Sign(ctx, signWith(strokeSignature())))
	_, err = done.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	require.NoError(t, err)
	assert.ErrorIs(t, done.Abandon(), ErrInvalidState)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) RecordContract(_ context.Context, _ record.ContractLogEntry, _ func() error) error {
	return f.err
}

func TestSession_LogFailureLeavesNoFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	boom := record.NewIOError("record_contract", "clients.db", errors.New("disk full"))

	e := NewEngine(failingStore{Store: env.store, err: boom})
	s := e.Begin(env.client.ID)
	_, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, signWith(strokeSignature())))

	_, err = s.Render(ctx, filepath.Join(env.dir, "vertrag.pdf"))
	assert.ErrorIs(t, err, boom)
	assertNoFiles(t, env.dir, "vertrag.pdf")
}

func assertNoFiles(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), name, "no output or temp file may remain")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "selected", StateSelected.String())
	assert.Equal(t, "rendered", StateRendered.String())
	assert.Equal(t, "State(9)", State(9).String())
}
