package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/quizarena/quiz-arena/internal/bracket"
)

// ErrDuplicateSubmission is returned when the unique (match_id, team_id)
// index rejects an insert: this team already has a recorded answer. Callers
// translate it into the domain-level rejection.
var ErrDuplicateSubmission = errors.New("submission already recorded for this team and match")

type SubmissionStore struct {
	db *sqlx.DB
}

func NewSubmissionStore(db *sqlx.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// InsertSubmissionTx appends one answer record. Concurrent duplicate inserts
// for the same (match, team) lose the race at the index, not in application
// code.
func (s *SubmissionStore) InsertSubmissionTx(ctx context.Context, tx *sqlx.Tx, sub *bracket.Submission) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO submissions (id, match_id, team_id, answer, is_correct, responded_at, submitted_by)
        VALUES (:id, :match_id, :team_id, :answer, :is_correct, :responded_at, :submitted_by)`, sub)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateSubmission
		}
		return err
	}
	return nil
}

// GetSubmissionsTx returns a match's submissions in authoritative order:
// server timestamp first, insertion order (rowid) breaking ties.
func (s *SubmissionStore) GetSubmissionsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.Submission, error) {
	var subs []bracket.Submission
	err := tx.SelectContext(ctx, &subs, `SELECT id, match_id, team_id, answer, is_correct, responded_at, submitted_by
        FROM submissions WHERE match_id = ? ORDER BY responded_at ASC, rowid ASC`, matchID)
	return subs, err
}

func (s *SubmissionStore) GetSubmissions(ctx context.Context, matchID uuid.UUID) ([]bracket.Submission, error) {
	var subs []bracket.Submission
	err := s.db.SelectContext(ctx, &subs, `SELECT id, match_id, team_id, answer, is_correct, responded_at, submitted_by
        FROM submissions WHERE match_id = ? ORDER BY responded_at ASC, rowid ASC`, matchID)
	return subs, err
}
