package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizarena/quiz-arena/internal/bracket"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, status, bracket_size, max_teams, question_time_limit_secs, winner_team_id)
        VALUES (:id, :name, :status, :bracket_size, :max_teams, :question_time_limit_secs, :winner_team_id)`, tournament)
	return err
}

func (s *TournamentStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO teams (id, tournament_id, name, color, seed)
        VALUES (:id, :tournament_id, :name, :color, :seed)`, teams)
	return err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round, match_index, team_1_id, team_2_id, status, next_match_id, next_slot, slot_1_void, slot_2_void, is_bye)
        VALUES (:id, :tournament_id, :round, :match_index, :team_1_id, :team_2_id, :status, :next_match_id, :next_slot, :slot_1_void, :slot_2_void, :is_bye)`, matches)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id string) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	return &tournament, err
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id string) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	return &tournament, err
}

func (s *TournamentStore) GetTeams(ctx context.Context, tournamentID string) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.db.SelectContext(ctx, &teams, "SELECT * FROM teams WHERE tournament_id = ? ORDER BY seed ASC", tournamentID)
	return teams, err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID string) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, match_index ASC", tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id string) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id string) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

// StartMatchTx flips a pending match to live with its question and clock.
// Returns false when the match was not pending, so concurrent start attempts
// resolve to exactly one winner.
func (s *TournamentStore) StartMatchTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, questionID uuid.UUID, startedAt time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET status = ?, current_question_id = ?, question_started_at = ?
        WHERE id = ? AND status = ?`,
		bracket.MatchLive, questionID, startedAt, matchID, bracket.MatchPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CompleteMatchTx records the terminal outcome. winnerTeamID may be nil
// (double elimination). The guard keeps status monotonic: a completed match
// is never re-completed, duplicate triggers are no-ops.
func (s *TournamentStore) CompleteMatchTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, winnerTeamID *uuid.UUID, bye bool) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET status = ?, winner_team_id = ?, is_bye = ?
        WHERE id = ? AND status != ?`,
		bracket.MatchCompleted, winnerTeamID, bye, matchID, bracket.MatchCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FillMatchSlotTx writes a team into a successor slot only if that slot is
// currently empty and not void. The conditional update is the write-once
// guarantee: a second writer affects zero rows and is a no-op.
func (s *TournamentStore) FillMatchSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot bracket.MatchSlot, teamID uuid.UUID) (bool, error) {
	var query string
	switch slot {
	case bracket.Slot1:
		query = `UPDATE matches SET team_1_id = ? WHERE id = ? AND team_1_id IS NULL AND slot_1_void = 0`
	case bracket.Slot2:
		query = `UPDATE matches SET team_2_id = ? WHERE id = ? AND team_2_id IS NULL AND slot_2_void = 0`
	}
	res, err := tx.ExecContext(ctx, query, teamID, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// VoidMatchSlotTx marks a slot as permanently unfillable. No-op when the
// slot already holds a team or is already void.
func (s *TournamentStore) VoidMatchSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot bracket.MatchSlot) (bool, error) {
	var query string
	switch slot {
	case bracket.Slot1:
		query = `UPDATE matches SET slot_1_void = 1 WHERE id = ? AND team_1_id IS NULL AND slot_1_void = 0`
	case bracket.Slot2:
		query = `UPDATE matches SET slot_2_void = 1 WHERE id = ? AND team_2_id IS NULL AND slot_2_void = 0`
	}
	res, err := tx.ExecContext(ctx, query, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *TournamentStore) CompleteTournamentTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, winnerTeamID *uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE tournaments SET status = ?, winner_team_id = ? WHERE id = ? AND status != ?`,
		bracket.TournamentCompleted, winnerTeamID, tournamentID, bracket.TournamentCompleted)
	return err
}

// LiveMatch pairs a live match with its tournament's time limit so the
// sweep can evaluate deadlines without a second lookup.
type LiveMatch struct {
	bracket.Match
	QuestionTimeLimitSecs int `db:"question_time_limit_secs"`
}

func (m *LiveMatch) QuestionTimeLimit() time.Duration {
	return time.Duration(m.QuestionTimeLimitSecs) * time.Second
}

func (s *TournamentStore) GetLiveMatches(ctx context.Context) ([]LiveMatch, error) {
	var matches []LiveMatch
	err := s.db.SelectContext(ctx, &matches, `SELECT m.*, t.question_time_limit_secs
        FROM matches m JOIN tournaments t ON t.id = m.tournament_id
        WHERE m.status = ? ORDER BY m.question_started_at ASC`, bracket.MatchLive)
	return matches, err
}

// UsedQuestionIDsTx lists questions already drawn anywhere in the
// tournament, so a later match never repeats one.
func (s *TournamentStore) UsedQuestionIDsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, `SELECT current_question_id FROM matches
        WHERE tournament_id = ? AND current_question_id IS NOT NULL`, tournamentID)
	return ids, err
}
