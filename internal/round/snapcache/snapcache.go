// Package snapcache guarda no Redis o snapshot público da rodada corrente
package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

const (
	keyCurrent     = "round:current"
	keyRoundPrefix = "round:snapshot:"
)

// grava só se (openedAt, version) for mais novo que o armazenado; eventos
// de rodadas diferentes podem chegar fora de ordem
var setIfNewer = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "opened", "version")
if cur[1] then
	local o, v = tonumber(cur[1]), tonumber(cur[2])
	local no, nv = tonumber(ARGV[1]), tonumber(ARGV[2])
	if o > no or (o == no and v >= nv) then
		return 0
	end
end
redis.call("HSET", KEYS[1], "opened", ARGV[1], "version", ARGV[2], "payload", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1`)

// Cache snapshots de rodada por id e o ponteiro para a corrente
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{R: r, TTL: ttl}
}

func keyRound(id string) string { return keyRoundPrefix + id }

// Apply registra o evento: atualiza o snapshot da rodada e, se mais novo, o corrente.
// Retorna true quando o corrente mudou
func (c *Cache) Apply(ctx context.Context, ev events.RoundEvent) (bool, error) {
	b, err := json.Marshal(ev.Round)
	if err != nil {
		return false, err
	}
	ttl := c.TTL.Milliseconds()

	if _, err := setIfNewer.Run(ctx, c.R, []string{keyRound(ev.Round.RoundID)},
		ev.Round.OpenedAt.UnixMilli(), ev.Version, b, ttl).Int(); err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, c.R, []string{keyCurrent},
		ev.Round.OpenedAt.UnixMilli(), ev.Version, b, ttl).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Current devolve o snapshot corrente; ok=false quando ausente
func (c *Cache) Current(ctx context.Context) (events.RoundSnapshot, bool, error) {
	return c.get(ctx, keyCurrent)
}

func (c *Cache) Round(ctx context.Context, id string) (events.RoundSnapshot, bool, error) {
	return c.get(ctx, keyRound(id))
}

func (c *Cache) get(ctx context.Context, key string) (events.RoundSnapshot, bool, error) {
	var s events.RoundSnapshot
	b, err := c.R.HGet(ctx, key, "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	return s, true, json.Unmarshal(b, &s)
}
