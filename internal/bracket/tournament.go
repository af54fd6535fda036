package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in_progress"
	TournamentCompleted    TournamentStatus = "completed"
)

type Tournament struct {
	ID     uuid.UUID        `db:"id" json:"id"`
	Name   string           `db:"name" json:"name"`
	Status TournamentStatus `db:"status" json:"status"`

	// BracketSize is the next power of two >= the number of teams.
	BracketSize int `db:"bracket_size" json:"bracket_size"`
	MaxTeams    int `db:"max_teams" json:"max_teams"`

	QuestionTimeLimitSecs int `db:"question_time_limit_secs" json:"question_time_limit_secs"`

	// Set when the final match completes. Nil while in progress, and nil on
	// a completed tournament whose final ended with a double elimination.
	WinnerTeamID *uuid.UUID `db:"winner_team_id" json:"winner_team_id"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (t *Tournament) QuestionTimeLimit() time.Duration {
	return time.Duration(t.QuestionTimeLimitSecs) * time.Second
}
