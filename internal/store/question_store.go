package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizarena/quiz-arena/internal/bracket"
)

type QuestionStore struct {
	db *sqlx.DB
}

func NewQuestionStore(db *sqlx.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, q *bracket.Question) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO questions (id, text, correct_answer, distractors)
        VALUES (:id, :text, :correct_answer, :distractors)`, q)
	return err
}

func (s *QuestionStore) GetQuestionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Question, error) {
	var q bracket.Question
	err := tx.GetContext(ctx, &q, "SELECT * FROM questions WHERE id = ?", id)
	return &q, err
}

// DrawRandomQuestionTx picks a random question not in excludeIDs. Returns
// sql.ErrNoRows when the bank is exhausted.
func (s *QuestionStore) DrawRandomQuestionTx(ctx context.Context, tx *sqlx.Tx, excludeIDs []uuid.UUID) (*bracket.Question, error) {
	var q bracket.Question
	if len(excludeIDs) == 0 {
		err := tx.GetContext(ctx, &q, "SELECT * FROM questions ORDER BY RANDOM() LIMIT 1")
		return &q, err
	}

	query, args, err := sqlx.In("SELECT * FROM questions WHERE id NOT IN (?) ORDER BY RANDOM() LIMIT 1", excludeIDs)
	if err != nil {
		return nil, err
	}
	err = tx.GetContext(ctx, &q, tx.Rebind(query), args...)
	return &q, err
}
