package pendingpath

import (
	"context"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "brandbolt:preauth:"

// RedisRepo stores pending paths in Redis so any replica can finish a callback.
type RedisRepo struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisRepo(client redis.Cmdable, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, ttl: ttl}
}

func (r *RedisRepo) Put(ctx context.Context, key, path string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := r.client.Set(ctx, keyPrefix+key, path, r.ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrNetwork, "[RedisRepo Put] %s", err.Error())
	}
	return nil
}

// Take uses GETDEL so two concurrent callbacks cannot both consume the path.
func (r *RedisRepo) Take(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	path, err := r.client.GetDel(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(errors.ErrNetwork, "[RedisRepo Take] %s", err.Error())
	}
	return path, nil
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parse redis URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis ping failed")
	}
	return client, nil
}
