package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
)

// MatchSlot names one of the two input positions of a match.
type MatchSlot int

const (
	Slot1 MatchSlot = 1
	Slot2 MatchSlot = 2
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket tree: Round is 1-based from the first round,
	// MatchIndex is 0-based within a round.
	Round      int `db:"round" json:"round"`
	MatchIndex int `db:"match_index" json:"match_index"`

	Team1ID *uuid.UUID `db:"team_1_id" json:"team_1_id"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team_2_id"`

	Status MatchStatus `db:"status" json:"status"`

	// Populated only while live.
	CurrentQuestionID *uuid.UUID `db:"current_question_id" json:"current_question_id"`
	QuestionStartedAt *time.Time `db:"question_started_at" json:"question_started_at"`

	// Nil on a completed match means no winner was determined
	// (both teams eliminated).
	WinnerTeamID *uuid.UUID `db:"winner_team_id" json:"winner_team_id"`

	// Where this match's winner is written; nil only on the final.
	NextMatchID *uuid.UUID `db:"next_match_id" json:"next_match_id"`
	NextSlot    *MatchSlot `db:"next_slot" json:"next_slot"`

	// A void slot can never be filled: either round-1 bracket padding or a
	// feeder match that completed without a winner.
	Slot1Void bool `db:"slot_1_void" json:"slot_1_void"`
	Slot2Void bool `db:"slot_2_void" json:"slot_2_void"`

	IsBye bool `db:"is_bye" json:"is_bye"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ready reports whether both team slots are filled, i.e. the match can go live.
func (m *Match) Ready() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

// SlotOf returns which slot the given team occupies.
func (m *Match) SlotOf(teamID uuid.UUID) (MatchSlot, bool) {
	if m.Team1ID != nil && *m.Team1ID == teamID {
		return Slot1, true
	}
	if m.Team2ID != nil && *m.Team2ID == teamID {
		return Slot2, true
	}
	return 0, false
}

// Deadline returns the wall-clock time after which answers count as late.
// Only meaningful while the match is live.
func (m *Match) Deadline(limit time.Duration) time.Time {
	if m.QuestionStartedAt == nil {
		return time.Time{}
	}
	return m.QuestionStartedAt.Add(limit)
}

// SoleTeam returns the only present team when the opposing slot is void.
// This is the bye shape: the match resolves without play.
func (m *Match) SoleTeam() (*uuid.UUID, bool) {
	if m.Team1ID != nil && m.Team2ID == nil && m.Slot2Void {
		return m.Team1ID, true
	}
	if m.Team2ID != nil && m.Team1ID == nil && m.Slot1Void {
		return m.Team2ID, true
	}
	return nil, false
}

// Voided reports whether both slots can never be filled, in which case the
// match completes with no winner and passes the void on.
func (m *Match) Voided() bool {
	return m.Slot1Void && m.Slot2Void
}
