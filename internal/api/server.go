// Package api serves the textbook HTTP API and the MCP tool server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/physicalai/tbrag/internal/cache"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/retrieval"
)

// QueryService answers textbook questions. Implemented by retrieval.Pipeline.
type QueryService interface {
	Query(ctx context.Context, req retrieval.Request) (retrieval.Response, error)
}

// ProfileService reads and saves learner profiles. Implemented by profile.Manager.
type ProfileService interface {
	Get(ctx context.Context, userID string) (profile.Stored, error)
	Save(ctx context.Context, userID string, p profile.Profile) (string, error)
}

// Personalizer serves personalized chapters. Implemented by cache.Personalizer.
type Personalizer interface {
	Personalize(ctx context.Context, userID string, chapterID int) (cache.PersonalizeResult, error)
}

// Translator serves translated chapters. Implemented by cache.Translator.
type Translator interface {
	Translate(ctx context.Context, userID string, chapterID int, lang string) (cache.TranslateResult, error)
}

// Deps holds the services behind the HTTP API.
type Deps struct {
	Query        QueryService
	Profiles     ProfileService
	Personalizer Personalizer
	Translator   Translator
	Sessions     SessionVerifier
	Health       []HealthCheck

	// RateLimitPerMinute bounds /api/query per client address; 0 disables it.
	RateLimitPerMinute int
	AllowedOrigins     []string
	Version            string
	Logger             *slog.Logger
}

// NewHandler returns the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth(deps))

	r.Route("/api", func(r chi.Router) {
		r.Use(Session(deps.Sessions))

		r.With(RateLimit(deps.RateLimitPerMinute)).Post("/query", handleQuery(deps))

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/profile", handleGetProfile(deps))
			r.Post("/profile", handleSaveProfile(deps))
			r.Post("/personalize", handlePersonalize(deps))
			r.Post("/translate", handleTranslate(deps))
		})
	})

	return r
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    "Physical AI Textbook API",
			"version": deps.Version,
			"status":  "running",
			"health":  "/health",
		})
	}
}
