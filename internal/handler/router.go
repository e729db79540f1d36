package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/lingo-chat/backend/internal/handler/conversation"
	"github.com/zhouzirui/lingo-chat/backend/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/lingo-chat/backend/internal/middleware"
	personaModel "github.com/zhouzirui/lingo-chat/backend/internal/model/persona"
	"github.com/zhouzirui/lingo-chat/backend/pkg/utils"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries everything the router wires to routes.
type Options struct {
	Personas       personaModel.Store
	Conversations  conversation.Service
	Quota          Pinger
	QuotaBackend   string
	CookieName     string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	personaHandler := persona.New(opts.Personas)
	conversationHandler := conversation.New(opts.Conversations, opts.CookieName, opts.Logger)

	r.Get("/healthz", healthHandler(opts.Quota, opts.QuotaBackend))

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		conversationHandler.RegisterRoutes(api)
	})

	return r
}

func healthHandler(quota Pinger, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if quota != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := quota.Ping(ctx); err != nil {
				utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":       "degraded",
					"quotaBackend": backend,
					"error":        err.Error(),
				})
				return
			}
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "quotaBackend": backend})
	}
}
