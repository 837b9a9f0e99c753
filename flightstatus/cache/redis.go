package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
	libRedis "github.com/LerianStudio/lib-flightstatus/flightstatus/redis"
)

// ErrNilConnection is returned by NewRedisStore when the connection is nil.
var ErrNilConnection = errors.New("cache: nil redis connection")

// scanBatchSize bounds how many keys one SCAN iteration returns.
const scanBatchSize = 100

// RedisStoreConfig configures a Redis-backed store.
type RedisStoreConfig struct {
	// TTL is the freshness window. Zero or negative means DefaultTTL.
	TTL time.Duration

	// RetentionFactor scales TTL into the physical Redis expiry, so stale
	// entries stay readable for fallback. Zero or negative means
	// DefaultRetentionFactor.
	RetentionFactor int

	// Logger is optional. A nil logger disables logging.
	Logger log.Logger
}

// RedisStore is a Store backed by Redis. Entries are sonic-encoded and
// written with an expiry several times the freshness TTL; logical
// freshness stays a reader-side judgment.
type RedisStore struct {
	conn     *libRedis.Client
	ownsConn bool

	ttl       time.Duration
	retention time.Duration
	logger    log.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	staleHits atomic.Uint64

	now func() time.Time
}

// NewRedisStore wraps an existing managed Redis connection. The caller
// keeps ownership: Close on the store will not close the connection.
func NewRedisStore(conn *libRedis.Client, cfg RedisStoreConfig) (*RedisStore, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	factor := cfg.RetentionFactor
	if factor <= 0 {
		factor = DefaultRetentionFactor
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &RedisStore{
		conn:      conn,
		ttl:       ttl,
		retention: time.Duration(factor) * ttl,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// NewRedisStoreFromURL connects to Redis at a redis:// URL and returns a
// store that owns the connection. TLS URLs are rejected; TLS needs a CA
// cert, so configure it explicitly and use NewRedisStore instead.
func NewRedisStoreFromURL(ctx context.Context, rawURL string, cfg RedisStoreConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	if opt.TLSConfig != nil {
		return nil, errors.New("cache: rediss urls are not supported, configure TLS explicitly and use NewRedisStore")
	}

	connCfg := libRedis.Config{
		Topology: libRedis.Topology{
			Standalone: &libRedis.StandaloneTopology{Address: opt.Addr},
		},
		Options: libRedis.ConnectionOptions{DB: opt.DB},
		Logger:  cfg.Logger,
	}

	if opt.Password != "" {
		connCfg.Auth = &libRedis.StaticPasswordAuth{Password: opt.Password}
	}

	conn, err := libRedis.New(ctx, connCfg)
	if err != nil {
		return nil, err
	}

	store, err := NewRedisStore(conn, cfg)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	store.ownsConn = true

	return store, nil
}

// Get returns the entry for key, or ErrMiss. Undecodable payloads are
// dropped and reported as misses.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: get redis client: %w", err)
	}

	payload, err := client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)

		return nil, ErrMiss
	}

	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}

	var entry Entry
	if err := sonic.Unmarshal(payload, &entry); err != nil {
		s.logger.Log(ctx, log.LevelWarn, "dropping undecodable cache entry",
			log.String("key", key.String()),
			log.Err(err),
		)

		_ = client.Del(ctx, key.String()).Err()

		s.misses.Add(1)

		return nil, ErrMiss
	}

	s.hits.Add(1)

	if !entry.Fresh(s.now(), s.ttl) {
		s.staleHits.Add(1)
	}

	return &entry, nil
}

// Put stores record under key with the retention expiry.
func (s *RedisStore) Put(ctx context.Context, key Key, record *provider.FlightStatusRecord) error {
	if record == nil {
		return ErrNilRecord
	}

	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("cache: get redis client: %w", err)
	}

	payload, err := sonic.Marshal(&Entry{Record: record, StoredAt: s.now()})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	if err := client.Set(ctx, key.String(), payload, s.retention).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}

	return nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("cache: get redis client: %w", err)
	}

	if err := client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("cache: redis delete: %w", err)
	}

	return nil
}

// Stats counts entries under the cache prefix via SCAN and reports the
// traffic counters.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: get redis client: %w", err)
	}

	var (
		cursor  uint64
		entries int
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, keyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("cache: redis scan: %w", err)
		}

		entries += len(keys)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return Stats{
		Backend:   "redis",
		Entries:   entries,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		StaleHits: s.staleHits.Load(),
	}, nil
}

// Close closes the connection only when the store created it (FromURL).
// A caller-supplied connection stays open.
func (s *RedisStore) Close() error {
	if !s.ownsConn {
		return nil
	}

	return s.conn.Close()
}
