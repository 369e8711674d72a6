// Package bootstrap monta as dependências da máquina de rodadas a partir da config
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/index"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	roundrepo "github.com/radieske/updown-rounds-poc/internal/round/repo"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/db"
	wallethttp "github.com/radieske/updown-rounds-poc/internal/wallet-service/http"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

// Stores store de rodadas e ledger sobre o mesmo backend.
// Wallet é o mesmo ledger visto pelas rotas de carteira
type Stores struct {
	Rounds machine.Store
	Ledger machine.Ledger
	Wallet wallethttp.Repo
	DB     *sql.DB // nil no driver memory
}

func (s Stores) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Health ping do banco quando houver
func (s Stores) Health(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

// OpenStores escolhe o backend por STORE_DRIVER ("postgres" | "memory")
func OpenStores(cfg config.Config) (Stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		wallet := walletrepo.NewMemory()
		return Stores{Rounds: roundrepo.NewMemory(wallet), Ledger: wallet, Wallet: wallet}, nil
	case "postgres", "":
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return Stores{}, err
		}
		wallet := walletrepo.NewPostgres(pg)
		return Stores{Rounds: roundrepo.NewPostgres(pg, wallet), Ledger: wallet, Wallet: wallet, DB: pg}, nil
	}
	return Stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// IndexSource escolhe a origem do índice por INDEX_SOURCE ("random" | "feed").
// No modo feed o cliente websocket roda até ctx terminar
func IndexSource(ctx context.Context, cfg config.Config, log *zap.Logger, onTick func()) (machine.IndexSource, error) {
	switch cfg.IndexSource {
	case "random", "":
		start, err := decimal.NewFromString(cfg.IndexStart)
		if err != nil {
			return nil, fmt.Errorf("INDEX_START: %w", err)
		}
		step, err := decimal.NewFromString(cfg.IndexStep)
		if err != nil {
			return nil, fmt.Errorf("INDEX_MAX_STEP: %w", err)
		}
		return index.NewRandomWalk(start, step, 0), nil
	case "feed":
		feed := &index.FeedSource{
			URL:        cfg.IndexFeedWSURL,
			StaleAfter: cfg.SettlementGrace,
			Log:        log.Named("index-feed"),
			OnTick:     onTick,
		}
		go feed.Start(ctx)
		return feed, nil
	}
	return nil, fmt.Errorf("unknown INDEX_SOURCE %q", cfg.IndexSource)
}

// MachineConfig converte a config do serviço na config da máquina
func MachineConfig(cfg config.Config) (machine.Config, error) {
	rc, err := cfg.RoundConfig()
	if err != nil {
		return machine.Config{}, err
	}
	return machine.Config{
		Round:              rc,
		SettlementGrace:    cfg.SettlementGrace,
		MaxConflictRetries: cfg.MaxConflictRetries,
	}, nil
}

// EmbeddedHandler serve as rotas de carteira junto da API de rodadas. No driver
// memory o ledger só existe neste processo, então é daqui que os depósitos entram
func EmbeddedHandler(rounds http.Handler, wallet wallethttp.Repo, log *zap.Logger) http.Handler {
	w := wallethttp.NewServer(log, wallet).Router()
	mux := http.NewServeMux()
	mux.Handle("/wallet", w)
	mux.Handle("/wallet/", w)
	mux.Handle("/", rounds)
	return mux
}
