package clock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SingleNodeLeader é sempre líder (execução local e testes)
type SingleNodeLeader struct{}

func (SingleNodeLeader) Acquire(context.Context) (bool, error) { return true, nil }
func (SingleNodeLeader) Release(context.Context) error         { return nil }

// renova o TTL só se a chave ainda pertence a este nó
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLeader implementa liderança com SET NX PX + renovação compare-and-set
type RedisLeader struct {
	rdb *redis.Client
	key string
	id  string
	ttl time.Duration
}

func NewRedisLeader(rdb *redis.Client, key string, ttl time.Duration) *RedisLeader {
	return &RedisLeader{rdb: rdb, key: key, id: uuid.NewString(), ttl: ttl}
}

func (l *RedisLeader) ID() string { return l.id }

func (l *RedisLeader) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.id, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.id, l.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLeader) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.id).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
