package main

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/quizarena/quiz-arena/internal/config"
	"github.com/quizarena/quiz-arena/internal/db"
	"github.com/quizarena/quiz-arena/internal/events"
	"github.com/quizarena/quiz-arena/internal/logger"
	"github.com/quizarena/quiz-arena/internal/service"
	"github.com/quizarena/quiz-arena/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour
	sessionManager.Store = sqlite3store.New(database.DB)

	broadcaster := events.NewBroadcaster()

	tournamentStore := store.NewTournamentStore(database)
	submissionStore := store.NewSubmissionStore(database)
	questionStore := store.NewQuestionStore(database)

	tournamentService := service.NewTournamentService(database, tournamentStore)
	matchService := service.NewMatchService(database, tournamentStore, submissionStore, questionStore)

	go sweepLoop(matchService, tournamentService, broadcaster, cfg.SweepInterval)

	router := newRouter(sessionManager, broadcaster, cfg, tournamentService, matchService, tournamentStore, questionStore)

	logger.Info("server starting", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
}

// sweepLoop periodically force-resolves live matches that outran their
// deadline and pushes the updated brackets to viewers.
func sweepLoop(matches *service.MatchService, tournaments *service.TournamentService, broadcaster *events.Broadcaster, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		affected, err := matches.SweepExpiredMatches(ctx)
		if err != nil {
			logger.Error("sweep failed", "error", err)
		}
		for _, tournamentID := range affected {
			data, err := tournaments.GetTournamentData(ctx, tournamentID.String())
			if err != nil {
				logger.Error("sweep: failed to load bracket", "tournament_id", tournamentID, "error", err)
				continue
			}
			broadcaster.PublishBracket(tournamentID, data)
		}
		cancel()
	}
}
