package app

import (
	"net/http"
	"time"

	authapi "lyceum/cmd/internal/auth/api"
	"lyceum/cmd/internal/gate"
	"lyceum/cmd/internal/web"

	"github.com/jackc/pgx/v5/pgxpool"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	metrics *Metrics,
	auth *authapi.Handler,
	pages *web.Handler,
	ws *gate.WSNotifier,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	if auth != nil {
		auth.Register(mux)
	}

	if pages != nil {
		pages.Register(mux)
	}

	if ws != nil {
		mux.HandleFunc("/ws/session", func(w http.ResponseWriter, r *http.Request) {
			if metrics != nil {
				metrics.WSConnectionOpened()
				defer metrics.WSConnectionClosed()
			}
			ws.HandleWS(w, r)
		})
	}
}
