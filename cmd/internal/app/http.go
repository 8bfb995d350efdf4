package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"linechat/cmd/internal/audit"
	"linechat/cmd/internal/chat"
	"linechat/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type sessionsResponse struct {
	Names  []string      `json:"names"`
	Live   int           `json:"live"`
	Recent []audit.Event `json:"recent"`
}

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	srv *chat.Server,
	ledger *audit.Recorder,
	dbPool *pgxpool.Pool,
	reg *prometheus.Registry,
	ws *realtime.WSGateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-srv.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		if dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		recent, err := ledger.Recent(r.Context(), limit)
		if err != nil {
			log.Warn("sessions.ledger.fail", "err", err)
			recent = nil
		}
		if recent == nil {
			recent = []audit.Event{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionsResponse{
			Names:  srv.Names(),
			Live:   srv.LiveCount(),
			Recent: recent,
		})
	})

	mux.Handle("/ws", ws)
}
