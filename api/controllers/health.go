package controllers

import (
	"net/http"

	"github.com/microcopias/copirent-backend/api/responses"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/db"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Copirent-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores so load balancers stop routing to an
// instance that lost its database or cache.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Copirent-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true

		if dbP == nil {
			checks["db"] = "unavailable"
			healthy = false
		} else if err := dbP.Ping(r.Context()); err != nil {
			logg.Error(r.Context(), "health.db_ping_failed", err)
			checks["db"] = "down"
			healthy = false
		}

		if redisP == nil {
			checks["redis"] = "unavailable"
			healthy = false
		} else if err := redisP.Ping(r.Context()); err != nil {
			logg.Error(r.Context(), "health.redis_ping_failed", err)
			checks["redis"] = "down"
			healthy = false
		}

		status := "ready"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, map[string]any{"status": status, "checks": checks})
	}
}
