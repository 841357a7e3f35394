package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/authbridge/authbridge/pkg/settings"
)

// putScript preserves an existing key's TTL on overwrite; a fresh key gets
// the configured expiry. One round trip, no race between the existence check
// and the write.
var putScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("SET", KEYS[1], ARGV[1], "KEEPTTL")
else
  return redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
end`)

// consumeScript reads an entry and, when it is marked consumable, deletes it
// in the same server-side operation. A GET followed by a separate DEL would
// let a second caller observe a payload already claimed by the first.
var consumeScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then
  return false
end
if cjson.decode(val)["consumable"] then
  redis.call("DEL", KEYS[1])
end
return val`)

// envelope wraps a stored entity with the flag the consume script inspects.
type envelope struct {
	Consumable bool            `json:"consumable"`
	Entity     json.RawMessage `json:"entity"`
}

// RedisStore keeps entries in a Redis instance so that any service instance
// can deliver a result regardless of which one created the request. Expiry is
// native to the backend.
type RedisStore[T Entity] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	// alwaysConsume short-circuits the consume script with GETDEL for
	// entities that are single-use by definition
	alwaysConsume bool
	timeout       time.Duration
}

// NewRedisClient connects to the Redis instance named by the settings
// repository and verifies the connection before returning.
func NewRedisClient(repo settings.Repository) (*redis.Client, error) {
	opts, err := redis.ParseURL(repo.GetString(settings.RedisURL))
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password := repo.GetString(settings.RedisPassword); password != "" {
		opts.Password = password
	}
	timeout := settings.Seconds(repo.Get(settings.RedisTimeout), 5*time.Second)
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a store over an established client. Keys are
// namespaced by the given prefix so request and user entries never collide.
func NewRedisStore[T Entity](client *redis.Client, prefix string, ttl, timeout time.Duration, alwaysConsume bool) *RedisStore[T] {
	return &RedisStore[T]{
		client:        client,
		prefix:        prefix,
		ttl:           ttl,
		alwaysConsume: alwaysConsume,
		timeout:       timeout,
	}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + ":" + id
}

// Put inserts the entity, keeping the original expiry on overwrite.
func (s *RedisStore[T]) Put(ctx context.Context, id string, entity T) error {
	if err := validArgs(id, entity); err != nil {
		return err
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	data, err := json.Marshal(envelope{
		Consumable: s.alwaysConsume || entity.Consumable(),
		Entity:     raw,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	seconds := strconv.Itoa(int(s.ttl / time.Second))
	if err := putScript.Run(ctx, s.client, []string{s.key(id)}, data, seconds).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the entity. Single-use entities come back via GETDEL; entities
// that only become consumable on completion go through the consume script.
func (s *RedisStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data string
	var err error
	if s.alwaysConsume {
		data, err = s.client.GetDel(ctx, s.key(id)).Result()
	} else {
		data, err = consumeScript.Run(ctx, s.client, []string{s.key(id)}).Text()
	}
	if err == redis.Nil {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out T
	if err := json.Unmarshal(env.Entity, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Delete removes the entry if present.
func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
