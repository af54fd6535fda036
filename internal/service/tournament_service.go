package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizarena/quiz-arena/internal/bracket"
	"github.com/quizarena/quiz-arena/internal/store"
	"github.com/quizarena/quiz-arena/internal/utils"
)

type TournamentService struct {
	db    *sqlx.DB
	store *store.TournamentStore
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore) *TournamentService {
	return &TournamentService{db: db, store: store}
}

type TeamInput struct {
	Name  string
	Color string
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Teams      []bracket.Team      `json:"teams"`
	Rounds     []RoundView         `json:"rounds"`
}

// RoundView groups a round's matches for rendering clients.
type RoundView struct {
	Round   int             `json:"round"`
	Matches []bracket.Match `json:"matches"`
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id string) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	teams, err := s.store.GetTeams(ctx, id)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TournamentData{
		Tournament: tournament,
		Teams:      teams,
		Rounds:     GroupRounds(matches),
	}, nil
}

// GroupRounds splits a round/index ordered match list into per-round views.
func GroupRounds(matches []bracket.Match) []RoundView {
	var rounds []RoundView
	for _, m := range matches {
		if len(rounds) == 0 || rounds[len(rounds)-1].Round != m.Round {
			rounds = append(rounds, RoundView{Round: m.Round})
		}
		last := &rounds[len(rounds)-1]
		last.Matches = append(last.Matches, m)
	}
	return rounds
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateBracket builds the complete match tree for the given teams in
// caller-determined seeding order: round-1 match i pairs seeds 2i and 2i+1,
// missing seeds become void slots (byes). Rounds past the first are pure
// structure linked to their successor at index i/2, slot 1 for even i.
func generateBracket(tournamentID uuid.UUID, teams []bracket.Team) []bracket.Match {
	var matches []bracket.Match

	bracketSize := calcBracketSize(len(teams))
	totalRounds := int(math.Log2(float64(bracketSize)))

	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := int(math.Pow(2, float64(totalRounds-r)))
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchID := uuid.New()

			m := bracket.Match{
				ID:           matchID,
				TournamentID: tournamentID,
				Round:        r,
				MatchIndex:   i,
				Status:       bracket.MatchPending,
			}

			if r < totalRounds {
				parentID := nextRoundMatchIDs[i/2]
				m.NextMatchID = &parentID

				if i%2 == 0 {
					m.NextSlot = utils.Ptr(bracket.Slot1)
				} else {
					m.NextSlot = utils.Ptr(bracket.Slot2)
				}
			}

			if r == 1 {
				if 2*i < len(teams) {
					m.Team1ID = &teams[2*i].ID
				} else {
					m.Slot1Void = true
				}
				if 2*i+1 < len(teams) {
					m.Team2ID = &teams[2*i+1].ID
				} else {
					m.Slot2Void = true
				}
			}

			matches = append(matches, m)
			currentRoundMatchIDs[i] = matchID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

// CreateTournament persists the tournament, its teams (seeded in input
// order) and the full bracket, then resolves round-1 byes to a fixed point
// so every auto-advance has happened before the bracket is visible.
func (s *TournamentService) CreateTournament(ctx context.Context, name string, questionTimeLimit time.Duration, teamInputs []TeamInput) (uuid.UUID, error) {
	if len(teamInputs) < 2 {
		return uuid.Nil, ErrInvalidTeamCount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	tournamentID := uuid.New()
	tournament := bracket.Tournament{
		ID:                    tournamentID,
		Name:                  name,
		Status:                bracket.TournamentInProgress,
		BracketSize:           calcBracketSize(len(teamInputs)),
		MaxTeams:              len(teamInputs),
		QuestionTimeLimitSecs: int(questionTimeLimit / time.Second),
	}

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, err
	}

	var teams []bracket.Team
	for i, input := range teamInputs {
		teams = append(teams, bracket.Team{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         input.Name,
			Color:        input.Color,
			Seed:         i + 1,
		})
	}

	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return uuid.Nil, err
	}

	matches := generateBracket(tournamentID, teams)
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return uuid.Nil, err
	}

	// Byes can chain: an advanced team may meet another void slot in the next
	// round. resolveStructural recurses until no structurally decided match
	// remains.
	for i := range matches {
		if matches[i].Round != 1 {
			continue
		}
		if err := resolveStructural(ctx, tx, s.store, &matches[i]); err != nil {
			return uuid.Nil, err
		}
	}

	return tournamentID, tx.Commit()
}
