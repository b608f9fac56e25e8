package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// RemoteName is the stats and metrics label of the L3 tier.
const RemoteName = "l3_remote"

// RemoteConfig configures the remote L3 tier.
type RemoteConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	NamespacePrefix string        `yaml:"namespace_prefix"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	Timeout         time.Duration `yaml:"timeout"`
	PoolSize        int           `yaml:"pool_size"`
}

// Remote is the L3 tier: a thin client over a shared Redis keyed under a
// namespace prefix. The store applies TTLs itself; entries are checked
// again locally on read as a defense against clock skew.
//
// The tier fails open: a transport error is reported as a remote
// availability error, which the engine treats as a miss, never a crash.
type Remote struct {
	rdb        *redis.Client
	prefix     string
	defaultTTL time.Duration
	timeout    time.Duration
	monitor    types.StatsRecorder
	logger     *slog.Logger

	now func() time.Time
}

// NewRemote creates the L3 tier. An unreachable store at construction time
// is logged, not fatal; operations degrade to misses until it comes back.
func NewRemote(cfg RemoteConfig, monitor types.StatsRecorder, logger *slog.Logger) (*Remote, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if monitor == nil {
		monitor = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	r := &Remote{
		rdb:        rdb,
		prefix:     cfg.NamespacePrefix,
		defaultTTL: cfg.DefaultTTL,
		timeout:    cfg.Timeout,
		monitor:    monitor,
		logger:     logger.With("component", RemoteName),
		now:        time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		r.logger.Warn("remote store unreachable, tier will fail open", "error", err)
	}

	return r, nil
}

// Name returns the tier identifier.
func (r *Remote) Name() string { return RemoteName }

// Get fetches and deserializes the entry for key. The TTL is re-checked
// locally; an expired entry is deleted remotely and reported as a miss.
func (r *Remote) Get(ctx context.Context, key string) (*types.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.rdb.Get(ctx, r.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound(key)
	}
	if err != nil {
		r.logger.Warn("remote get failed", "key", key, "error", err)
		return nil, errors.Wrap(errors.ErrCodeRemoteUnavailable, "get", err).
			WithComponent(RemoteName).WithContext("key", key)
	}

	var entry types.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("undecodable remote entry", "key", key, "error", err)
		return nil, errors.Wrap(errors.ErrCodeSerialization, "decode entry", err).
			WithComponent(RemoteName).WithContext("key", key)
	}

	now := r.now()
	if entry.Expired(now) {
		if err := r.rdb.Del(ctx, r.namespaced(key)).Err(); err != nil {
			r.logger.Warn("delete expired remote entry", "key", key, "error", err)
		}
		return nil, errors.NotFound(key)
	}

	entry.Touch(now)
	return &entry, nil
}

// Put serializes the entry and stores it with the entry's TTL, or the
// configured default when the entry has none.
func (r *Remote) Put(ctx context.Context, key string, entry *types.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSerialization, "encode entry", err).
			WithComponent(RemoteName).WithContext("key", key)
	}

	ttl := entry.TTL
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.rdb.Set(ctx, r.namespaced(key), data, ttl).Err(); err != nil {
		r.logger.Warn("remote put failed", "key", key, "error", err)
		return errors.Wrap(errors.ErrCodeRemoteUnavailable, "set", err).
			WithComponent(RemoteName).WithContext("key", key)
	}
	return nil
}

// Remove deletes the key and reports whether the store held it.
func (r *Remote) Remove(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.rdb.Del(ctx, r.namespaced(key)).Result()
	if err != nil {
		r.logger.Warn("remote remove failed", "key", key, "error", err)
		return false, errors.Wrap(errors.ErrCodeRemoteUnavailable, "del", err).
			WithComponent(RemoteName).WithContext("key", key)
	}
	return count > 0, nil
}

// Clear deletes every key under the namespace prefix, and only those: the
// store is shared, so unrelated keys must survive.
func (r *Remote) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.Warn("remote clear delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeRemoteUnavailable, "scan", err).WithComponent(RemoteName)
	}

	r.monitor.UpdateSize(RemoteName, 0, 0)
	return nil
}

// Len counts keys under the namespace prefix. Best effort: an unreachable
// store counts as zero.
func (r *Remote) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	count := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("remote len scan failed", "error", err)
		return 0
	}
	return count
}

// Close releases the client's connection pool.
func (r *Remote) Close() error {
	return r.rdb.Close()
}

func (r *Remote) namespaced(key string) string {
	return r.prefix + key
}
