package service

import "errors"

// Bracket generation errors
var (
	ErrInvalidTeamCount = errors.New("at least 2 teams are required to form a bracket")
)

// Match lifecycle errors
var (
	ErrMatchNotReady     = errors.New("match is missing a team and cannot start")
	ErrInvalidTransition = errors.New("match is not in the expected state for this transition")
)

// Answer submission errors. ErrAlreadyAnswered and ErrMatchDecided are kept
// distinct on purpose: the first means this team cannot resubmit, the second
// means the match outcome is already known.
var (
	ErrNotCompetitor   = errors.New("team is not a competitor in this match")
	ErrAlreadyAnswered = errors.New("team has already answered in this match")
	ErrMatchDecided    = errors.New("match outcome has already been decided")
)

// Question bank errors
var (
	ErrNoQuestionsAvailable = errors.New("no unused questions left in the bank")
)
