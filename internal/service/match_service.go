package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizarena/quiz-arena/internal/bracket"
	"github.com/quizarena/quiz-arena/internal/logger"
	"github.com/quizarena/quiz-arena/internal/store"
)

type MatchService struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	submissions *store.SubmissionStore
	questions   *store.QuestionStore

	// Injected clock; all protocol timestamps come from here, never from
	// clients.
	now func() time.Time
}

func NewMatchService(db *sqlx.DB, st *store.TournamentStore, subs *store.SubmissionStore, questions *store.QuestionStore) *MatchService {
	return &MatchService{
		db:          db,
		store:       st,
		submissions: subs,
		questions:   questions,
		now:         time.Now,
	}
}

// SubmissionResult reports the outcome of one answer attempt back to the
// submitting team.
type SubmissionResult struct {
	Accepted       bool       `json:"accepted"`
	IsCorrect      bool       `json:"is_correct"`
	TimedOut       bool       `json:"timed_out"`
	MatchCompleted bool       `json:"match_completed"`
	WinnerTeamID   *uuid.UUID `json:"winner_team_id"`
}

// StartMatch transitions a pending match to live: draws an unused question
// from the bank and starts the clock. Requires both teams; the guarded
// update makes concurrent starts resolve to exactly one.
func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.Status != bracket.MatchPending {
		return nil, ErrInvalidTransition
	}
	if !match.Ready() {
		return nil, ErrMatchNotReady
	}

	usedIDs, err := s.store.UsedQuestionIDsTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list used questions: %w", err)
	}

	question, err := s.questions.DrawRandomQuestionTx(ctx, tx, usedIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoQuestionsAvailable
		}
		return nil, fmt.Errorf("failed to draw question: %w", err)
	}

	startedAt := s.now().UTC()
	ok, err := s.store.StartMatchTx(ctx, tx, match.ID, question.ID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	match.Status = bracket.MatchLive
	match.CurrentQuestionID = &question.ID
	match.QuestionStartedAt = &startedAt

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.Info("match started",
		"match_id", match.ID,
		"tournament_id", match.TournamentID,
		"question_id", question.ID)
	return match, nil
}

// SubmitAnswer runs the answer resolution protocol for one attempt. At most
// one submission per team is accepted; the first correct, in-time answer
// decides the match. Two failed submissions complete it winnerless.
func (s *MatchService) SubmitAnswer(ctx context.Context, matchID, teamID uuid.UUID, answer, submittedBy string) (*SubmissionResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.Status == bracket.MatchPending {
		return nil, ErrInvalidTransition
	}

	if _, ok := match.SlotOf(teamID); !ok {
		return nil, ErrNotCompetitor
	}

	existing, err := s.submissions.GetSubmissionsTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}
	for _, sub := range existing {
		if sub.TeamID == teamID {
			return nil, ErrAlreadyAnswered
		}
	}

	// "Your team lost the race" is a different rejection than "you already
	// answered"; the checks above establish which one applies.
	if match.Status == bracket.MatchCompleted {
		return nil, ErrMatchDecided
	}

	tournament, err := s.store.GetTournamentTx(ctx, tx, match.TournamentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	deadline := match.Deadline(tournament.QuestionTimeLimit())

	question, err := s.questions.GetQuestionTx(ctx, tx, *match.CurrentQuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	respondedAt := s.now().UTC()
	sub := bracket.Submission{
		ID:          uuid.New(),
		MatchID:     match.ID,
		TeamID:      teamID,
		Answer:      answer,
		IsCorrect:   gradeAnswer(answer, question.CorrectAnswer),
		RespondedAt: respondedAt,
		SubmittedBy: submittedBy,
	}

	if err := s.submissions.InsertSubmissionTx(ctx, tx, &sub); err != nil {
		// Two near-simultaneous requests for the same team: the index broke
		// the tie, the loser gets the same rejection as a plain resubmit.
		if errors.Is(err, store.ErrDuplicateSubmission) {
			return nil, ErrAlreadyAnswered
		}
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	// Re-derive the outcome from the full ordered submission set rather than
	// from this request alone.
	subs, err := s.submissions.GetSubmissionsTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	winner, decided := deriveOutcome(subs, deadline)

	result := &SubmissionResult{
		Accepted:  true,
		IsCorrect: sub.IsCorrect,
		TimedOut:  respondedAt.After(deadline),
	}

	if decided {
		ok, err := s.store.CompleteMatchTx(ctx, tx, match.ID, winner, false)
		if err != nil {
			return nil, fmt.Errorf("failed to complete match: %w", err)
		}
		if ok {
			match.Status = bracket.MatchCompleted
			match.WinnerTeamID = winner
			if err := progressCompletion(ctx, tx, s.store, match); err != nil {
				return nil, err
			}
		}
		result.MatchCompleted = true
		result.WinnerTeamID = winner
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.Info("answer submitted",
		"match_id", match.ID,
		"team_id", teamID,
		"correct", result.IsCorrect,
		"timed_out", result.TimedOut,
		"completed", result.MatchCompleted)
	return result, nil
}

// ForceResolve is the administrator override: completes a match with the
// given winner (or no winner) from any non-terminal state. Forcing an
// already completed match is a no-op, not an error, to tolerate duplicate
// triggers.
func (s *MatchService) ForceResolve(ctx context.Context, matchID uuid.UUID, winnerTeamID *uuid.UUID) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.Status == bracket.MatchCompleted {
		return match, tx.Commit()
	}

	if winnerTeamID != nil {
		if _, ok := match.SlotOf(*winnerTeamID); !ok {
			return nil, ErrNotCompetitor
		}
	}

	ok, err := s.store.CompleteMatchTx(ctx, tx, match.ID, winnerTeamID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to complete match: %w", err)
	}
	if ok {
		match.Status = bracket.MatchCompleted
		match.WinnerTeamID = winnerTeamID
		if err := progressCompletion(ctx, tx, s.store, match); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.Info("match force-resolved", "match_id", match.ID, "winner_team_id", winnerTeamID)
	return match, nil
}

// SweepExpiredMatches resolves every live match whose deadline has passed,
// applying the recorded submissions under the normal rules: no correct
// in-time answer means no winner. Idempotent; safe to run on a timer.
// Returns the tournaments whose brackets changed.
func (s *MatchService) SweepExpiredMatches(ctx context.Context) ([]uuid.UUID, error) {
	live, err := s.store.GetLiveMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live matches: %w", err)
	}

	var affected []uuid.UUID
	now := s.now().UTC()
	for i := range live {
		m := &live[i]
		if m.QuestionStartedAt == nil || !now.After(m.Deadline(m.QuestionTimeLimit())) {
			continue
		}
		completed, err := s.resolveExpired(ctx, m.ID, m.Deadline(m.QuestionTimeLimit()))
		if err != nil {
			return affected, err
		}
		// The match may have been decided between the listing and the
		// per-match transaction; only an actual completion changed the
		// bracket.
		if completed {
			affected = append(affected, m.TournamentID)
		}
	}
	return affected, nil
}

func (s *MatchService) resolveExpired(ctx context.Context, matchID uuid.UUID, deadline time.Time) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		return false, fmt.Errorf("failed to get match: %w", err)
	}
	if match.Status != bracket.MatchLive {
		return false, nil
	}

	subs, err := s.submissions.GetSubmissionsTx(ctx, tx, match.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get submissions: %w", err)
	}

	// Past the deadline the match is decided regardless of how many teams
	// answered; first correct in-time submission wins, otherwise nobody does.
	winner, _ := deriveOutcome(subs, deadline)

	ok, err := s.store.CompleteMatchTx(ctx, tx, match.ID, winner, false)
	if err != nil {
		return false, fmt.Errorf("failed to complete match: %w", err)
	}
	if ok {
		match.Status = bracket.MatchCompleted
		match.WinnerTeamID = winner
		if err := progressCompletion(ctx, tx, s.store, match); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	if ok {
		logger.Info("expired match resolved", "match_id", match.ID, "winner_team_id", winner)
	}
	return ok, nil
}

// gradeAnswer compares a submitted answer against the correct one,
// case-insensitively and ignoring surrounding whitespace.
func gradeAnswer(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

// deriveOutcome applies first-correct-wins over the chronologically ordered
// submission set. decided is true when a winner exists or both teams have
// submitted without one (double elimination).
func deriveOutcome(subs []bracket.Submission, deadline time.Time) (winner *uuid.UUID, decided bool) {
	for i := range subs {
		if subs[i].FinalCorrect(deadline) {
			return &subs[i].TeamID, true
		}
	}
	if len(subs) >= 2 {
		return nil, true
	}
	return nil, false
}
