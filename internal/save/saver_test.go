package save

import (
	"context"
	"errors"
	"testing"
	"time"

	"tycoon/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playerID = "6f1c2f7e-6a55-4d43-9a0e-3b1f2f0a9c11"

type failingStore struct {
	Store
	getErr error
	setErr error
}

func (f failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func newTestSaver(st Store, backupEvery int) *Saver {
	s := NewSaver(st, testCodec(), backupEvery, nil)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestSaverLoadMissingIsFresh(t *testing.T) {
	s := newTestSaver(NewMemoryStore(), 5)
	st, report, err := s.Load(context.Background(), playerID)
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, game.LoadedFresh, report.Source)
	assert.Empty(t, report.Problem)
}

func TestSaverSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)
	want := playedState()

	require.NoError(t, s.Save(ctx, playerID, want))
	got, report, err := s.Load(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, game.LoadedMain, report.Source)
	assert.Equal(t, CurrentVersion, report.FromVersion)
	assert.Equal(t, want, got)

	_, err = mem.Get(ctx, BackupKey(playerID))
	assert.NoError(t, err, "first save writes a backup")
}

func TestSaverBackupCadence(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 3)
	st := playedState()

	for i := 1; i <= 4; i++ {
		st.Coins = float64(i)
		require.NoError(t, s.Save(ctx, playerID, st))
	}

	blob, err := mem.Get(ctx, BackupKey(playerID))
	require.NoError(t, err)
	dec, err := s.codec.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, 3.0, dec.State.Coins)
}

func TestSaverFallsBackToBackupOnCorruptMain(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)
	want := playedState()
	require.NoError(t, s.Save(ctx, playerID, want))

	garbage := []byte(`{"version":"3.0.0","checksum":"deadbeef","data":{"coins":1}}`)
	require.NoError(t, mem.Set(ctx, MainKey(playerID), garbage))

	got, report, err := s.Load(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, game.LoadedBackup, report.Source)
	assert.Contains(t, report.Problem, "checksum")
	assert.Equal(t, want, got)

	quarantined, err := mem.Get(ctx, QuarantineKey(playerID))
	require.NoError(t, err)
	assert.Equal(t, garbage, quarantined)
}

func TestSaverBothCorruptGivesFreshWithProblem(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)
	require.NoError(t, mem.Set(ctx, MainKey(playerID), []byte("{")))
	require.NoError(t, mem.Set(ctx, BackupKey(playerID), []byte(`{"coins":-1}`)))

	st, report, err := s.Load(ctx, playerID)
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, game.LoadedFresh, report.Source)
	assert.Contains(t, report.Problem, "main:")
	assert.Contains(t, report.Problem, "backup:")
}

func TestSaverStorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	s := newTestSaver(failingStore{Store: NewMemoryStore(), getErr: boom}, 5)
	_, _, err := s.Load(ctx, playerID)
	assert.ErrorIs(t, err, game.ErrStorageUnavailable)

	s = newTestSaver(failingStore{Store: NewMemoryStore(), setErr: boom}, 5)
	err = s.Save(ctx, playerID, playedState())
	assert.ErrorIs(t, err, game.ErrStorageUnavailable)
}

func TestSaverVerifyAndSweep(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)

	healthy := "11111111-1111-4111-8111-111111111111"
	broken := "22222222-2222-4222-8222-222222222222"
	legacy := "33333333-3333-4333-8333-333333333333"
	lost := "44444444-4444-4444-8444-444444444444"

	require.NoError(t, s.Save(ctx, healthy, playedState()))
	require.NoError(t, s.Save(ctx, broken, playedState()))
	require.NoError(t, mem.Set(ctx, MainKey(broken), []byte("not json")))
	require.NoError(t, mem.Set(ctx, MainKey(legacy), []byte(`{"coins":3,"level":2}`)))
	require.NoError(t, mem.Set(ctx, MainKey(lost), []byte("nope")))

	report, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, map[string]int{VerifyOK: 1, VerifyRepaired: 1, VerifyUpgraded: 1, VerifyCorrupt: 1}, report.Statuses)

	res, err := s.Verify(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, VerifyOK, res.Status, "repaired save now reads from main")

	res, err = s.Verify(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, VerifyOK, res.Status)

	res, err = s.Verify(ctx, "55555555-5555-4555-8555-555555555555")
	require.NoError(t, err)
	assert.Equal(t, VerifyMissing, res.Status)
}

// saveDuringBackupRead lands a live save the moment the backup copy is read.
type saveDuringBackupRead struct {
	Store
	live func()
}

func (s *saveDuringBackupRead) Get(ctx context.Context, key string) ([]byte, error) {
	if key == BackupKey(playerID) && s.live != nil {
		s.live()
		s.live = nil
	}
	return s.Store.Get(ctx, key)
}

func TestSaverVerifyKeepsConcurrentSave(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	seed := newTestSaver(mem, 5)
	old := playedState()
	require.NoError(t, seed.Save(ctx, playerID, old))
	require.NoError(t, mem.Set(ctx, MainKey(playerID), []byte("not json")))

	fresh := playedState()
	fresh.Coins = 99999
	store := &saveDuringBackupRead{Store: mem}
	store.live = func() { require.NoError(t, seed.Save(ctx, playerID, fresh)) }
	s := newTestSaver(store, 5)

	res, err := s.Verify(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, VerifyChanged, res.Status)

	got, report, err := s.Load(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, game.LoadedMain, report.Source)
	assert.Equal(t, 99999.0, got.Coins, "verify must not roll back the newer save")
}

func TestSaverInfo(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)
	require.NoError(t, s.Save(ctx, playerID, playedState()))
	require.NoError(t, mem.Set(ctx, BackupKey(playerID), []byte("garbage")))

	info, err := s.Info(ctx, playerID)
	require.NoError(t, err)
	assert.True(t, info.Main.Exists)
	assert.True(t, info.Main.Valid)
	assert.Equal(t, CurrentVersion, info.Main.Version)
	assert.Len(t, info.Main.Checksum, 16)
	assert.Equal(t, 12, info.Main.Level)
	assert.Equal(t, 1234.5, info.Main.Coins)
	assert.Equal(t, 1, info.Main.PrestigeLevel)
	assert.Equal(t, int64(1700000000000), info.Main.SavedAt.UnixMilli())
	assert.True(t, info.Backup.Exists)
	assert.False(t, info.Backup.Valid)
	assert.NotEmpty(t, info.Backup.Problem)
}

func TestSaverRemove(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newTestSaver(mem, 5)
	require.NoError(t, s.Save(ctx, playerID, playedState()))
	require.NoError(t, s.Remove(ctx, playerID))

	keys, err := mem.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
