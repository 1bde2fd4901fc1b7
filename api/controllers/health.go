package controllers

import (
	"context"
	"net/http"

	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/config"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Georgy-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	deps := []struct {
		name string
		ping pinger
	}{
		{"database", dbP},
		{"redis", redisP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Georgy-Env", cfg.App.Env)
		for _, dep := range deps {
			if dep.ping == nil {
				continue
			}
			if err := dep.ping.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
