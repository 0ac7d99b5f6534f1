package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix = "tenantbridge"
	timeLayout    = time.RFC3339Nano
)

// RedisIndex keeps a hash per tenant plus a set of known tenant ids. It is a
// projection of the primary record and is allowed to lag behind it.
type RedisIndex struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisIndex connects to the Redis instance at url and verifies it with a ping.
func NewRedisIndex(ctx context.Context, url string, logger *zap.Logger) (*RedisIndex, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIndexWithClient(client, logger), nil
}

func NewRedisIndexWithClient(client *redis.Client, logger *zap.Logger) *RedisIndex {
	return &RedisIndex{client: client, prefix: defaultPrefix, logger: logger}
}

func (i *RedisIndex) tenantKey(id string) string {
	return i.prefix + ":tenant:" + id
}

func (i *RedisIndex) setKey() string {
	return i.prefix + ":tenants"
}

// Seed registers a newly created tenant. created_at is written only once.
func (i *RedisIndex) Seed(ctx context.Context, t *domain.TenantRecord) error {
	key := i.tenantKey(t.ID)
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", t.CreatedAt.UTC().Format(timeLayout))
		pipe.HSet(ctx, key, entryFields(t))
		pipe.SAdd(ctx, i.setKey(), t.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed tenant index: %w", err)
	}
	return nil
}

// Sync refreshes the mutable fields. It also backfills created_at for
// entries whose seed was lost.
func (i *RedisIndex) Sync(ctx context.Context, t *domain.TenantRecord) error {
	key := i.tenantKey(t.ID)
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if !t.CreatedAt.IsZero() {
			pipe.HSetNX(ctx, key, "created_at", t.CreatedAt.UTC().Format(timeLayout))
		}
		pipe.HSet(ctx, key, entryFields(t))
		pipe.SAdd(ctx, i.setKey(), t.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync tenant index: %w", err)
	}
	return nil
}

func (i *RedisIndex) List(ctx context.Context) ([]domain.IndexEntry, error) {
	ids, err := i.client.SMembers(ctx, i.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = i.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for n, id := range ids {
			cmds[n] = pipe.HGetAll(ctx, i.tenantKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read tenant index entries: %w", err)
	}

	entries := make([]domain.IndexEntry, 0, len(ids))
	for n, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			i.logger.Warn("tenant listed in index set without hash", zap.String("tenant_id", ids[n]))
			continue
		}
		entries = append(entries, parseEntry(ids[n], fields))
	}
	return entries, nil
}

func (i *RedisIndex) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *RedisIndex) Close() error {
	return i.client.Close()
}

func entryFields(t *domain.TenantRecord) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"user_id":      t.UserID,
		"company_name": t.CompanyName,
		"email":        t.Email,
		"last_seen":    t.LastSeen.UTC().Format(timeLayout),
	}
}

func parseEntry(id string, fields map[string]string) domain.IndexEntry {
	e := domain.IndexEntry{
		TenantID:    id,
		UserID:      fields["user_id"],
		CompanyName: fields["company_name"],
		Email:       fields["email"],
	}
	if ts, err := time.Parse(timeLayout, fields["last_seen"]); err == nil {
		e.LastSeen = ts
	}
	if ts, err := time.Parse(timeLayout, fields["created_at"]); err == nil {
		e.CreatedAt = ts
	}
	return e
}
