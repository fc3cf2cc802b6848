package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sdrhub/pkg/protocol"
)

var testNode = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func defaultConfig() protocol.NodeConfig {
	return protocol.NodeConfig{
		StreamKinds: []protocol.StreamKind{protocol.StreamKindFFT},
		Freq:        1_000_000,
		Amp:         1,
		Lna:         0,
		Vga:         0,
		SampleRate:  4_000_000,
	}
}

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()
	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetConfigNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConfig(context.Background(), testNode)
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestGetOrSeedConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.GetOrSeedConfig(ctx, testNode, defaultConfig())
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)

	// Second call returns the stored row, not a fresh seed.
	updated := cfg
	updated.Freq = 2_480_000_000
	require.NoError(t, s.PutConfig(ctx, testNode, updated))

	cfg, err = s.GetOrSeedConfig(ctx, testNode, defaultConfig())
	require.NoError(t, err)
	require.Equal(t, uint64(2_480_000_000), cfg.Freq)
}

func TestGetOrSeedConfigConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]protocol.NodeConfig, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.GetOrSeedConfig(ctx, testNode, defaultConfig())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, defaultConfig(), results[i])
	}

	// Exactly one persisted row afterwards.
	entries, err := s.ListConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, testNode, entries[0].NodeID)
}

func TestPutConfigOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConfig(ctx, testNode, defaultConfig()))

	updated := defaultConfig()
	updated.Lna = 32
	updated.Vga = 14
	require.NoError(t, s.PutConfig(ctx, testNode, updated))

	cfg, err := s.GetConfig(ctx, testNode)
	require.NoError(t, err)
	require.Equal(t, uint8(32), cfg.Lna)
	require.Equal(t, uint8(14), cfg.Vga)

	entries, err := s.ListConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSampleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payloads := [][]byte{
		bytes.Repeat([]byte{0x01}, 64),
		bytes.Repeat([]byte{0x02}, 64),
		bytes.Repeat([]byte{0x03}, 64),
	}
	for i, data := range payloads {
		require.NoError(t, s.AppendSample(ctx, &Sample{
			NodeID:     testNode,
			Kind:       protocol.StreamKindFFT,
			Freq:       1_000_000,
			Amp:        1,
			Lna:        0,
			Vga:        0,
			SampleRate: 4_000_000,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Data:       data,
		}))
	}

	got, err := s.QuerySamples(ctx, testNode, protocol.StreamKindFFT, base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, sample := range got {
		require.Equal(t, payloads[i], sample.Data)
		require.Equal(t, uint64(1_000_000), sample.Freq)
		require.Equal(t, uint8(1), sample.Amp)
		require.Equal(t, uint64(4_000_000), sample.SampleRate)
		require.Equal(t, protocol.StreamKindFFT, sample.Kind)
	}
}

func TestQuerySamplesWindowIsInclusiveExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendSample(ctx, &Sample{
			NodeID:    testNode,
			Kind:      protocol.StreamKindFFT,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Data:      []byte{byte(i)},
		}))
	}

	// [base, base+2s) excludes the third sample.
	got, err := s.QuerySamples(ctx, testNode, protocol.StreamKindFFT, base, base.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []byte{0}, got[0].Data)
	require.Equal(t, []byte{1}, got[1].Data)
}

func TestQuerySamplesFiltersNodeAndKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	other := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	now := time.Now().UTC()

	require.NoError(t, s.AppendSample(ctx, &Sample{NodeID: testNode, Kind: protocol.StreamKindFFT, Timestamp: now, Data: []byte("a")}))
	require.NoError(t, s.AppendSample(ctx, &Sample{NodeID: testNode, Kind: protocol.StreamKindZigBee, Timestamp: now, Data: []byte("b")}))
	require.NoError(t, s.AppendSample(ctx, &Sample{NodeID: other, Kind: protocol.StreamKindFFT, Timestamp: now, Data: []byte("c")}))

	got, err := s.QuerySamples(ctx, testNode, protocol.StreamKindFFT, now.Add(-time.Second), now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte("a"), got[0].Data)
}

func TestConfigValidationErrors(t *testing.T) {
	cfg := &Config{Type: "mysql"}
	require.Error(t, cfg.Validate())

	cfg = &Config{Type: DatabaseTypePostgres}
	require.Error(t, cfg.Validate())

	cfg = &Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: "/tmp/x.db"}}
	require.NoError(t, cfg.Validate())
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	require.Equal(t, DatabaseTypeSQLite, cfg.Type)
	require.NotEmpty(t, cfg.SQLite.Path)

	pg := &Config{Type: DatabaseTypePostgres}
	pg.ApplyDefaults()
	require.Equal(t, 5432, pg.Postgres.Port)
	require.Equal(t, "disable", pg.Postgres.SSLMode)
}

func TestStorageFailureSurfacesOnClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.AppendSample(context.Background(), &Sample{
		NodeID:    testNode,
		Kind:      protocol.StreamKindFFT,
		Timestamp: time.Now(),
		Data:      []byte("x"),
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrConfigNotFound))
}
