package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one team's answer in one match. Append-only: at most one
// per (match, team), enforced by a unique index.
type Submission struct {
	ID      uuid.UUID `db:"id" json:"id"`
	MatchID uuid.UUID `db:"match_id" json:"match_id"`
	TeamID  uuid.UUID `db:"team_id" json:"team_id"`

	Answer    string `db:"answer" json:"answer"`
	IsCorrect bool   `db:"is_correct" json:"is_correct"`

	// Server-assigned; client timing is never trusted.
	RespondedAt time.Time `db:"responded_at" json:"responded_at"`

	SubmittedBy string `db:"submitted_by" json:"submitted_by"`
}

// InTime reports whether the submission landed before the deadline.
func (s *Submission) InTime(deadline time.Time) bool {
	return !s.RespondedAt.After(deadline)
}

// FinalCorrect is the winning condition: correct and before the deadline.
func (s *Submission) FinalCorrect(deadline time.Time) bool {
	return s.IsCorrect && s.InTime(deadline)
}
