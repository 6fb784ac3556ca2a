package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New("api-gateway", cfg.Env)
	defer log.Sync()

	// targets
	wagerURL := cfg.WagerURL
	ledgerURL := cfg.LedgerURL
	syncURL := os.Getenv("SYNC_URL")
	if syncURL == "" {
		syncURL = "http://localhost:8084"
	}

	wager := rp(wagerURL)
	ledger := rp(ledgerURL)
	sync := rp(syncURL)

	mux := http.NewServeMux()

	// consultas e mutações da plataforma (ex.: /api/wager/v1/bets -> wager-service)
	mux.Handle("/api/wager/", http.StripPrefix("/api/wager", wager))

	// razão (ex.: /api/ledger/balance -> ledger-service)
	mux.Handle("/api/ledger/", http.StripPrefix("/api", ledger))

	// WebSocket de sincronização (o reverse proxy repassa o upgrade)
	mux.Handle("/ws", sync)

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
