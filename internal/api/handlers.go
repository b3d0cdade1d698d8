package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/physicalai/tbrag/internal/auth"
	"github.com/physicalai/tbrag/internal/cache"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/retrieval"
	"github.com/physicalai/tbrag/internal/textbook"
)

type queryRequest struct {
	Question     string `json:"question" validate:"required,max=2000"`
	TopK         int    `json:"top_k" validate:"omitempty,min=1,max=20"`
	SelectedText string `json:"selected_text" validate:"max=10000"`
}

type chapterRequest struct {
	ChapterID int `json:"chapter_id" validate:"required,min=1,max=6"`
}

type translateRequest struct {
	ChapterID  int    `json:"chapter_id" validate:"required,min=1,max=6"`
	TargetLang string `json:"target_lang" validate:"required,oneof=ur de fr en"`
}

type profileSaved struct {
	Status      string `json:"status"`
	ProfileHash string `json:"profile_hash"`
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		q := retrieval.Request{
			Question:     req.Question,
			TopK:         req.TopK,
			SelectedText: req.SelectedText,
		}
		if u := auth.UserFrom(r.Context()); u != nil {
			stored, err := deps.Profiles.Get(r.Context(), u.ID)
			switch {
			case err == nil:
				q.Profile = &stored.Profile
			case errors.Is(err, profile.ErrNotFound):
			default:
				deps.Logger.Warn("loading profile for query, answering without it", "user_id", u.ID, "error", err)
			}
		}

		resp, err := deps.Query.Query(r.Context(), q)
		if err != nil {
			serviceError(w, deps.Logger, "process your query", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFrom(r.Context())
		stored, err := deps.Profiles.Get(r.Context(), u.ID)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "profile not found")
			return
		}
		if err != nil {
			serviceError(w, deps.Logger, "load your profile", err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

func handleSaveProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p profile.Profile
		if !decode(w, r, &p) {
			return
		}
		u := auth.UserFrom(r.Context())
		hash, err := deps.Profiles.Save(r.Context(), u.ID, p)
		if err != nil {
			serviceError(w, deps.Logger, "save your profile", err)
			return
		}
		deps.Logger.Info("profile saved", "user_id", u.ID, "profile_hash", hash)
		writeJSON(w, http.StatusOK, profileSaved{Status: "success", ProfileHash: hash})
	}
}

func handlePersonalize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chapterRequest
		if !decode(w, r, &req) {
			return
		}
		u := auth.UserFrom(r.Context())
		res, err := deps.Personalizer.Personalize(r.Context(), u.ID, req.ChapterID)
		if err != nil {
			serviceError(w, deps.Logger, "personalize the chapter", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleTranslate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if !decode(w, r, &req) {
			return
		}
		u := auth.UserFrom(r.Context())
		res, err := deps.Translator.Translate(r.Context(), u.ID, req.ChapterID, req.TargetLang)
		if err != nil {
			serviceError(w, deps.Logger, "translate the chapter", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// serviceError maps domain errors to HTTP responses. Unclassified errors are
// logged and reported with a generic message.
func serviceError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	switch {
	case errors.Is(err, cache.ErrProfileNotFound):
		httpError(w, http.StatusBadRequest, "precondition_failed", "complete your learner profile before personalizing chapters")
	case errors.Is(err, textbook.ErrChapterNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "chapter not found")
	case errors.Is(err, cache.ErrUnsupportedLanguage):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported target language")
	default:
		logger.Error("request failed", "action", action, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s; please try again", action)
	}
}
