package bot

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/client"
	"github.com/radieske/updown-rounds-poc/internal/round/dto"
	walletdto "github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
)

type fakeRounds struct {
	cur     dto.RoundResponse
	curErr  error
	placeFn func(participant string) error
	placed  []string
}

func (f *fakeRounds) Current(context.Context) (dto.RoundResponse, error) { return f.cur, f.curErr }

func (f *fakeRounds) PlaceWager(_ context.Context, roundID, participantID, side, stakeTier string) (dto.PlaceWagerResponse, error) {
	if f.placeFn != nil {
		if err := f.placeFn(participantID); err != nil {
			return dto.PlaceWagerResponse{}, err
		}
	}
	f.placed = append(f.placed, roundID+"/"+participantID+"/"+side+"/"+stakeTier)
	return dto.PlaceWagerResponse{WagerID: "w", Status: "PENDING"}, nil
}

type fakeWallet struct {
	mu   sync.Mutex
	refs []string
}

func (f *fakeWallet) Deposit(_ context.Context, userID, amount, ref string) (walletdto.WalletResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	return walletdto.WalletResponse{UserID: userID}, nil
}

func newBot(r *fakeRounds, w *fakeWallet, hooks Hooks) *Bot {
	return New(Config{Participants: []string{"a", "b"}, Tiers: []string{"1", "2"}}, r, w, zap.NewNop(), hooks, 1)
}

func TestFund_DepositsOncePerParticipant(t *testing.T) {
	w := &fakeWallet{}
	require.NoError(t, newBot(&fakeRounds{}, w, Hooks{}).Fund(context.Background()))
	assert.Equal(t, []string{"bot-seed-a", "bot-seed-b"}, w.refs)
}

func TestTick_WagersOncePerOpenRound(t *testing.T) {
	r := &fakeRounds{cur: dto.RoundResponse{RoundID: "r-1", Phase: "OPEN"}}
	sides := map[string]int{}
	b := newBot(r, &fakeWallet{}, Hooks{OnPlaced: func(s string) { sides[s]++ }})
	ctx := context.Background()

	require.NoError(t, b.Tick(ctx))
	require.NoError(t, b.Tick(ctx))
	assert.Len(t, r.placed, 2)
	assert.Equal(t, 2, sides["BUY"]+sides["SELL"])

	r.cur = dto.RoundResponse{RoundID: "r-1", Phase: "PROCESSING"}
	require.NoError(t, b.Tick(ctx))
	r.cur = dto.RoundResponse{RoundID: "r-2", Phase: "OPEN"}
	require.NoError(t, b.Tick(ctx))
	assert.Len(t, r.placed, 4)
}

func TestTick_TopsUpOnInsufficientFunds(t *testing.T) {
	r := &fakeRounds{
		cur: dto.RoundResponse{RoundID: "r-1", Phase: "OPEN"},
		placeFn: func(p string) error {
			if p == "b" {
				return &client.APIError{Status: http.StatusConflict, Code: "INSUFFICIENT_FUNDS"}
			}
			return nil
		},
	}
	w := &fakeWallet{}
	var rejected []string
	b := newBot(r, w, Hooks{OnRejected: func(c string) { rejected = append(rejected, c) }})

	require.NoError(t, b.Tick(context.Background()))
	assert.Len(t, r.placed, 1)
	assert.Equal(t, []string{"INSUFFICIENT_FUNDS"}, rejected)
	assert.Equal(t, []string{"bot-topup-r-1-b"}, w.refs)
}

func TestTick_NoRoundYet(t *testing.T) {
	r := &fakeRounds{curErr: &client.APIError{Status: http.StatusNotFound, Code: "UNKNOWN_ROUND"}}
	assert.NoError(t, newBot(r, &fakeWallet{}, Hooks{}).Tick(context.Background()))

	r.curErr = errors.New("connection refused")
	assert.Error(t, newBot(r, &fakeWallet{}, Hooks{}).Tick(context.Background()))
}

func TestStart_RequiresParticipants(t *testing.T) {
	b := New(Config{}, &fakeRounds{}, &fakeWallet{}, zap.NewNop(), Hooks{}, 1)
	assert.Error(t, b.Start(context.Background()))
}
