package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/quizarena/quiz-arena/internal/bracket"
	"github.com/quizarena/quiz-arena/internal/config"
	"github.com/quizarena/quiz-arena/internal/events"
	"github.com/quizarena/quiz-arena/internal/httputil"
	"github.com/quizarena/quiz-arena/internal/logger"
	"github.com/quizarena/quiz-arena/internal/service"
	"github.com/quizarena/quiz-arena/internal/store"
)

const sessionTeamKey = "teamID"

func newRouter(
	sessionManager *scs.SessionManager,
	broadcaster *events.Broadcaster,
	cfg *config.Config,
	tournaments *service.TournamentService,
	matches *service.MatchService,
	tournamentStore *store.TournamentStore,
	questions *store.QuestionStore,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	r.Get("/events", broadcaster.Handler().ServeHTTP)

	publish := func(r *http.Request, tournamentID uuid.UUID) {
		data, err := tournaments.GetTournamentData(r.Context(), tournamentID.String())
		if err != nil {
			logger.Error("failed to load bracket for broadcast", "tournament_id", tournamentID, "error", err)
			return
		}
		broadcaster.PublishBracket(tournamentID, data)
	}

	r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name              string `json:"name"`
			QuestionTimeLimit int    `json:"question_time_limit_secs"`
			Teams             []struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			} `json:"teams"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}

		limit := cfg.QuestionTimeLimit
		if req.QuestionTimeLimit > 0 {
			limit = time.Duration(req.QuestionTimeLimit) * time.Second
		}

		var teamInputs []service.TeamInput
		for _, t := range req.Teams {
			teamInputs = append(teamInputs, service.TeamInput{Name: t.Name, Color: t.Color})
		}

		id, err := tournaments.CreateTournament(r.Context(), req.Name, limit, teamInputs)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		data, err := tournaments.GetTournamentData(r.Context(), id.String())
		if err != nil {
			httputil.InternalServerError(w, "failed to load created tournament", err)
			return
		}
		broadcaster.PublishBracket(id, data)
		httputil.JSON(w, http.StatusCreated, data)
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, err := tournaments.GetTournamentData(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, data)
	})

	r.Post("/matches/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid match ID", err)
			return
		}

		match, err := matches.StartMatch(r.Context(), matchID)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		publish(r, match.TournamentID)
		httputil.JSON(w, http.StatusOK, match)
	})

	r.Post("/matches/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid match ID", err)
			return
		}

		var req struct {
			TeamID uuid.UUID `json:"team_id"`
			Answer string    `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}

		// The session identity, when present, records who pressed the button.
		submittedBy := sessionManager.GetString(r.Context(), sessionTeamKey)
		if submittedBy == "" {
			submittedBy = "anonymous"
		}

		result, err := matches.SubmitAnswer(r.Context(), matchID, req.TeamID, req.Answer, submittedBy)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		if result.MatchCompleted {
			if match, err := tournamentStore.GetMatch(r.Context(), matchID.String()); err == nil {
				publish(r, match.TournamentID)
			}
		}
		httputil.JSON(w, http.StatusOK, result)
	})

	r.Post("/matches/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid match ID", err)
			return
		}

		var req struct {
			WinnerTeamID *uuid.UUID `json:"winner_team_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}

		match, err := matches.ForceResolve(r.Context(), matchID, req.WinnerTeamID)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		publish(r, match.TournamentID)
		httputil.JSON(w, http.StatusOK, match)
	})

	r.Post("/sweep", func(w http.ResponseWriter, r *http.Request) {
		affected, err := matches.SweepExpiredMatches(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "sweep failed", err)
			return
		}
		for _, tournamentID := range affected {
			publish(r, tournamentID)
		}
		httputil.JSON(w, http.StatusOK, map[string]int{"resolved": len(affected)})
	})

	r.Post("/questions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text          string   `json:"text"`
			CorrectAnswer string   `json:"correct_answer"`
			Distractors   []string `json:"distractors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid request body", err)
			return
		}
		if req.Text == "" || req.CorrectAnswer == "" {
			httputil.BadRequest(w, "text and correct_answer are required", nil)
			return
		}

		question := &bracket.Question{
			ID:            uuid.New(),
			Text:          req.Text,
			CorrectAnswer: req.CorrectAnswer,
			Distractors:   req.Distractors,
		}
		if err := questions.CreateQuestion(r.Context(), question); err != nil {
			httputil.InternalServerError(w, "failed to create question", err)
			return
		}
		httputil.JSON(w, http.StatusCreated, question)
	})

	r.Post("/teams/{id}/claim", func(w http.ResponseWriter, r *http.Request) {
		teamID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "invalid team ID", err)
			return
		}
		sessionManager.Put(r.Context(), sessionTeamKey, teamID.String())
		httputil.JSON(w, http.StatusOK, map[string]string{"team_id": teamID.String()})
	})

	return r
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		httputil.NotFound(w, "not found", err)
	case errors.Is(err, service.ErrInvalidTeamCount),
		errors.Is(err, service.ErrNotCompetitor):
		httputil.BadRequest(w, err.Error(), err)
	case errors.Is(err, service.ErrMatchNotReady):
		httputil.Conflict(w, err.Error(), "not_ready")
	case errors.Is(err, service.ErrInvalidTransition):
		httputil.Conflict(w, err.Error(), "invalid_state")
	case errors.Is(err, service.ErrAlreadyAnswered):
		httputil.Conflict(w, err.Error(), "already_answered")
	case errors.Is(err, service.ErrMatchDecided):
		httputil.Conflict(w, err.Error(), "match_decided")
	case errors.Is(err, service.ErrNoQuestionsAvailable):
		httputil.Conflict(w, err.Error(), "no_questions")
	default:
		httputil.InternalServerError(w, "request failed", err)
	}
}
