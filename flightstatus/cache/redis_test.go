package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	libRedis "github.com/LerianStudio/lib-flightstatus/flightstatus/redis"
)

func newTestRedisStore(t *testing.T, cfg RedisStoreConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	conn, err := libRedis.New(context.Background(), libRedis.Config{
		Topology: libRedis.Topology{
			Standalone: &libRedis.StandaloneTopology{Address: mr.Addr()},
		},
		Logger: &log.NopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewRedisStore(conn, cfg)
	require.NoError(t, err)

	return store, mr
}

func TestRedisStore_PutGetRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})

	key := NewKey("AA123", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	record := newTestRecord("AA123")

	require.NoError(t, store.Put(context.Background(), key, record))

	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, entry)

	assertRecordEquivalent(t, record, entry.Record)
	assert.WithinDuration(t, time.Now(), entry.StoredAt, time.Minute)
}

func TestRedisStore_WireKeyForm(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{})

	key := NewKey("aa123", time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC))
	require.NoError(t, store.Put(context.Background(), key, newTestRecord("AA123")))

	assert.True(t, mr.Exists("flight_status:v2:AA123:20250301"))
}

func TestRedisStore_GetMiss(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})

	entry, err := store.Get(context.Background(), NewKey("ZZ999", time.Now()))
	assert.ErrorIs(t, err, ErrMiss)
	assert.Nil(t, entry)
}

func TestRedisStore_StaleFallbackWindow(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{
		TTL:             50 * time.Millisecond,
		RetentionFactor: 10,
	})

	key := NewKey("AA123", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Put(context.Background(), key, newTestRecord("AA123")))

	// Past the freshness TTL but inside the physical retention window the
	// entry must remain readable, just no longer fresh.
	store.now = func() time.Time { return time.Now().Add(time.Second) }

	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, entry.Fresh(store.now(), 50*time.Millisecond))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.StaleHits)

	// Past the retention window Redis drops the key entirely.
	mr.FastForward(time.Second)

	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_UndecodablePayloadDropped(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{})

	key := NewKey("AA123", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, mr.Set(key.String(), "not json"))

	_, err := store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)

	assert.False(t, mr.Exists(key.String()), "the undecodable entry is removed")
}

func TestRedisStore_PutNilRecord(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})

	err := store.Put(context.Background(), NewKey("AA123", time.Now()), nil)
	assert.ErrorIs(t, err, ErrNilRecord)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})

	key := NewKey("AA123", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Put(context.Background(), key, newTestRecord("AA123")))
	require.NoError(t, store.Delete(context.Background(), key))

	_, err := store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, store.Delete(context.Background(), NewKey("ZZ999", time.Now())))
}

func TestRedisStore_StatsCountsOnlyCacheKeys(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{})

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(context.Background(), NewKey("AA123", day), newTestRecord("AA123")))
	require.NoError(t, store.Put(context.Background(), NewKey("UA456", day), newTestRecord("UA456")))

	require.NoError(t, mr.Set("unrelated:key", "value"))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "redis", stats.Backend)
	assert.Equal(t, 2, stats.Entries)
}

func TestNewRedisStore_NilConnection(t *testing.T) {
	store, err := NewRedisStore(nil, RedisStoreConfig{})
	assert.ErrorIs(t, err, ErrNilConnection)
	assert.Nil(t, store)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStoreFromURL(context.Background(), "redis://"+mr.Addr(), RedisStoreConfig{
		Logger: &log.NopLogger{},
	})
	require.NoError(t, err)

	key := NewKey("AA123", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Put(context.Background(), key, newTestRecord("AA123")))

	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "AA123", entry.Record.FlightID)

	// A store built from a URL owns its connection and closes it.
	require.NoError(t, store.Close())

	connected, err := store.conn.IsConnected()
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestNewRedisStoreFromURL_Invalid(t *testing.T) {
	_, err := NewRedisStoreFromURL(context.Background(), "not-a-url", RedisStoreConfig{})
	assert.Error(t, err)

	_, err = NewRedisStoreFromURL(context.Background(), "rediss://localhost:6379", RedisStoreConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rediss")
}

func TestRedisStore_CloseLeavesSharedConnectionOpen(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})

	require.NoError(t, store.Close())

	connected, err := store.conn.IsConnected()
	require.NoError(t, err)
	assert.True(t, connected)
}
