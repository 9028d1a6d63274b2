package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/controller"
	"perpexecutor/src/delegate"
	"perpexecutor/src/ledger"
	"perpexecutor/src/model"
	"perpexecutor/src/pnl"
	"perpexecutor/src/relay"
	"perpexecutor/src/settings"
	"perpexecutor/src/trade"
	"perpexecutor/src/txbuilder"
)

// Monitor is the PnL poll loop as seen from the HTTP surface. The
// controller stops it inside close/flip; the handlers restart it when a
// new position exists.
type Monitor interface {
	Start(ctx context.Context) error
	Stop()
}

// Deps are the process-scoped state objects the HTTP surface uses.
type Deps struct {
	Registry   *relay.Registry
	Store      *trade.Store
	History    *ledger.Ledger
	Controller *controller.TradeController
	Settings   *settings.Manager
	Delegates  *delegate.Manager
	Monitor    Monitor
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var (
		cfgErr     *relay.ConfigurationError
		netErr     *relay.NetworkError
		rejErr     *relay.RejectedError
		concurrent *trade.ConcurrentActionError
	)
	switch {
	case errors.As(err, &concurrent):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, trade.ErrNoOpenTrade):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &netErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.As(err, &rejErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type openPositionRequest struct {
	Account    string  `json:"account"`
	Pair       string  `json:"pair"`
	TradeIndex uint    `json:"trade_index"`
	Collateral float64 `json:"collateral"`
	Leverage   int     `json:"leverage"`
	IsLong     bool    `json:"is_long"`
	OpenPrice  float64 `json:"open_price"`
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Get("/providers", func(w http.ResponseWriter, r *http.Request) {
		var out []relay.Snapshot
		for _, t := range deps.Registry.ListProviders() {
			snap, err := deps.Registry.GetStatus(t)
			if err != nil {
				continue
			}
			out = append(out, snap)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"providers": out,
			"active":    deps.Registry.ActiveType(),
		})
	})

	r.Put("/providers/active", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Provider string `json:"provider"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		if err := deps.Registry.SetActive(relay.ProviderType(body.Provider)); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"active": body.Provider})
	})

	r.Get("/position", func(w http.ResponseWriter, r *http.Request) {
		t, ok := deps.Store.Current()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"state": deps.Store.State()})
			return
		}
		out := map[string]interface{}{
			"state":         deps.Store.State(),
			"trade":         t,
			"position_size": t.PositionSize(),
		}
		if snapshot, ok := deps.Store.LatestPnL(); ok {
			out["pnl"] = snapshot
		}
		writeJSON(w, http.StatusOK, out)
	})

	// Records an externally confirmed open and starts monitoring it.
	r.Post("/position/open", func(w http.ResponseWriter, r *http.Request) {
		var body openPositionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		if !model.IsAddress(body.Account) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account must be a 20-byte hex address"})
			return
		}
		if body.OpenPrice <= 0 || body.Collateral <= 0 || body.Leverage < 2 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "open_price, collateral and leverage are required"})
			return
		}
		if body.Pair == "" {
			body.Pair = settings.Defaults().DefaultPair
		}

		position := model.Trade{
			Account:    body.Account,
			Pair:       body.Pair,
			PairIndex:  model.PairIndexFor(body.Pair),
			TradeIndex: body.TradeIndex,
			Collateral: body.Collateral,
			Leverage:   body.Leverage,
			IsLong:     body.IsLong,
			OpenPrice:  body.OpenPrice,
			TP:         txbuilder.TakeProfit(body.OpenPrice, body.IsLong, body.Leverage),
			OpenedAt:   time.Now().UTC(),
		}
		if err := deps.Store.SetOpen(position); err != nil {
			writeError(w, err)
			return
		}

		if deps.Monitor != nil {
			if err := deps.Monitor.Start(context.Background()); err != nil && !errors.Is(err, pnl.ErrAlreadyPolling) {
				logger.WithError(err).Warn("PnL monitor did not start for new position")
			}
		}
		deps.Controller.PrimeCache(context.Background())

		writeJSON(w, http.StatusCreated, map[string]interface{}{"trade": position})
	})

	r.Post("/position/close", func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Controller.Close(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/position/flip", func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Controller.Flip(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		// The controller stopped the monitor for the old key; the flipped
		// position needs a fresh run.
		if deps.Monitor != nil {
			if err := deps.Monitor.Start(context.Background()); err != nil && !errors.Is(err, pnl.ErrAlreadyPolling) {
				logger.WithError(err).Warn("PnL monitor did not restart after flip")
			}
		}
		deps.Controller.PrimeCache(context.Background())
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/ledger/{account}", func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		entries := deps.History.List(r.Context(), account)
		writeJSON(w, http.StatusOK, map[string]interface{}{"trades": entries})
	})

	r.Get("/settings/{account}", func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		writeJSON(w, http.StatusOK, deps.Settings.Load(r.Context(), account))
	})

	r.Put("/settings/{account}", func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		var body model.Settings
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		deps.Settings.Save(r.Context(), account, body)
		// Load round-trips the stored record through validation, so the
		// response shows what will actually be used.
		writeJSON(w, http.StatusOK, deps.Settings.Load(r.Context(), account))
	})

	r.Get("/delegate/{account}", func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		writeJSON(w, http.StatusOK, deps.Delegates.Status(r.Context(), account))
	})

	r.Put("/delegate/{account}", func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		var body model.DelegateStatus
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		deps.Delegates.Save(r.Context(), account, body)
		writeJSON(w, http.StatusOK, deps.Delegates.Status(r.Context(), account))
	})

	// Unsigned setup payloads the trader signs with their own wallet.
	r.Get("/delegate/{account}/setup-txs", func(w http.ResponseWriter, r *http.Request) {
		delegateAddr := r.URL.Query().Get("delegate")
		if !model.IsAddress(delegateAddr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delegate must be a 20-byte hex address"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"set_delegate":    deps.Delegates.SetupTx(delegateAddr),
			"remove_delegate": deps.Delegates.RemoveTx(),
			"usdc_approval":   deps.Delegates.ApprovalTx(),
		})
	})

	return r
}

func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if deps.Monitor != nil {
		deps.Monitor.Stop()
	}

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
