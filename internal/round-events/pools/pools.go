// Package pools mantém no Redis os totais ao vivo de cada lado por rodada,
// alimentados pelo tópico wager_placed
package pools

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

const keyPrefix = "round:pools:"

// soma uma vez por wagerId; reentregas do Kafka não contam de novo
var addOnce = redis.NewScript(`
if redis.call("SADD", KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call("HINCRBY", KEYS[1], ARGV[2] .. ":micros", ARGV[3])
redis.call("HINCRBY", KEYS[1], ARGV[2] .. ":count", 1)
redis.call("PEXPIRE", KEYS[1], ARGV[4])
redis.call("PEXPIRE", KEYS[2], ARGV[4])
return 1`)

// Pools totais de uma rodada
type Pools struct {
	RoundID    string `json:"roundId"`
	BuyMicros  int64  `json:"buyMicros"`
	SellMicros int64  `json:"sellMicros"`
	BuyWagers  int64  `json:"buyWagers"`
	SellWagers int64  `json:"sellWagers"`
}

type Tracker struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Tracker{R: r, TTL: ttl}
}

func keyPools(roundID string) string { return keyPrefix + roundID }
func keySeen(roundID string) string  { return keyPrefix + roundID + ":seen" }

// Apply soma a aposta ao lado; false quando já contabilizada
func (t *Tracker) Apply(ctx context.Context, w events.WagerPlaced) (bool, error) {
	if w.RoundID == "" || w.WagerID == "" {
		return false, fmt.Errorf("wager event without ids")
	}
	if !domain.Side(w.Side).Valid() {
		return false, fmt.Errorf("wager %s: %w %q", w.WagerID, domain.ErrInvalidSide, w.Side)
	}
	n, err := addOnce.Run(ctx, t.R, []string{keyPools(w.RoundID), keySeen(w.RoundID)},
		w.WagerID, w.Side, w.StakeMicros, t.TTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get devolve os totais; rodada sem apostas vem zerada
func (t *Tracker) Get(ctx context.Context, roundID string) (Pools, error) {
	h, err := t.R.HGetAll(ctx, keyPools(roundID)).Result()
	if err != nil {
		return Pools{}, err
	}
	p := Pools{RoundID: roundID}
	for field, dst := range map[string]*int64{
		"BUY:micros":  &p.BuyMicros,
		"SELL:micros": &p.SellMicros,
		"BUY:count":   &p.BuyWagers,
		"SELL:count":  &p.SellWagers,
	} {
		v, ok := h[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Pools{}, fmt.Errorf("pools %s field %s: %w", roundID, field, err)
		}
		*dst = n
	}
	return p, nil
}
