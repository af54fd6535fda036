package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/quiz-arena/internal/bracket"
	"github.com/quizarena/quiz-arena/internal/store"
)

// matchFixture wires a full engine against one tournament with a controlled
// clock. Advance the clock by reassigning fixture.clock between calls.
type matchFixture struct {
	db           *sqlx.DB
	stores       *store.TournamentStore
	matchService *MatchService
	tournamentID uuid.UUID
	teams        []bracket.Team
	matches      map[[2]int]bracket.Match
	clock        time.Time
}

var fixtureEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupMatchTest(t *testing.T, teamNames ...string) *matchFixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	tournamentStore := store.NewTournamentStore(db)
	submissionStore := store.NewSubmissionStore(db)
	questionStore := store.NewQuestionStore(db)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		err := questionStore.CreateQuestion(ctx, &bracket.Question{
			ID:            uuid.New(),
			Text:          fmt.Sprintf("Question %d", i),
			CorrectAnswer: fmt.Sprintf("answer-%d", i),
			Distractors:   bracket.StringArray{"wrong-a", "wrong-b"},
		})
		require.NoError(t, err)
	}

	tournamentService := NewTournamentService(db, tournamentStore)
	tournamentID, err := tournamentService.CreateTournament(ctx, "Quiz Night", 30*time.Second, teamInputs(teamNames...))
	require.NoError(t, err)

	f := &matchFixture{
		db:           db,
		stores:       tournamentStore,
		tournamentID: tournamentID,
		clock:        fixtureEpoch,
	}

	f.matchService = NewMatchService(db, tournamentStore, submissionStore, questionStore)
	f.matchService.now = func() time.Time { return f.clock }

	f.teams, err = tournamentStore.GetTeams(ctx, tournamentID.String())
	require.NoError(t, err)

	f.reload(t)
	return f
}

func (f *matchFixture) reload(t *testing.T) {
	t.Helper()
	matches, err := f.stores.GetMatches(context.Background(), f.tournamentID.String())
	require.NoError(t, err)
	f.matches = make(map[[2]int]bracket.Match)
	for _, m := range matches {
		f.matches[[2]int{m.Round, m.MatchIndex}] = m
	}
}

func (f *matchFixture) match(t *testing.T, round, index int) bracket.Match {
	t.Helper()
	f.reload(t)
	m, ok := f.matches[[2]int{round, index}]
	require.True(t, ok, "no match at round %d index %d", round, index)
	return m
}

// correctAnswer looks up the right answer for whatever question the match drew.
func (f *matchFixture) correctAnswer(t *testing.T, m bracket.Match) string {
	t.Helper()
	require.NotNil(t, m.CurrentQuestionID)
	var answer string
	err := f.db.Get(&answer, "SELECT correct_answer FROM questions WHERE id = ?", *m.CurrentQuestionID)
	require.NoError(t, err)
	return answer
}

func TestStartMatch(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m := f.match(t, 1, 0)
	started, err := f.matchService.StartMatch(ctx, m.ID)
	require.NoError(t, err)

	assert.Equal(t, bracket.MatchLive, started.Status)
	require.NotNil(t, started.CurrentQuestionID)
	require.NotNil(t, started.QuestionStartedAt)
	assert.Equal(t, fixtureEpoch, started.QuestionStartedAt.UTC())

	// Starting a live match is an illegal transition, not a restart.
	_, err = f.matchService.StartMatch(ctx, m.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The successor has no teams yet.
	_, err = f.matchService.StartMatch(ctx, f.match(t, 2, 0).ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestStartMatch_DrawsDistinctQuestions(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m0, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	m1, err := f.matchService.StartMatch(ctx, f.match(t, 1, 1).ID)
	require.NoError(t, err)

	assert.NotEqual(t, *m0.CurrentQuestionID, *m1.CurrentQuestionID,
		"a drawn question must not repeat within the tournament")
}

func TestSubmitAnswer_FirstCorrectWins(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	answer := f.correctAnswer(t, *m)

	teamA, teamB := f.teams[0].ID, f.teams[1].ID

	f.clock = fixtureEpoch.Add(5 * time.Second)
	result, err := f.matchService.SubmitAnswer(ctx, m.ID, teamA, answer, "player-a")
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.True(t, result.IsCorrect)
	assert.False(t, result.TimedOut)
	assert.True(t, result.MatchCompleted)
	require.NotNil(t, result.WinnerTeamID)
	assert.Equal(t, teamA, *result.WinnerTeamID)

	updated := f.match(t, 1, 0)
	assert.Equal(t, bracket.MatchCompleted, updated.Status)
	require.NotNil(t, updated.WinnerTeamID)
	assert.Equal(t, teamA, *updated.WinnerTeamID)

	successor := f.match(t, 2, 0)
	require.NotNil(t, successor.Team1ID)
	assert.Equal(t, teamA, *successor.Team1ID)

	// The race is over; the other team is told so.
	f.clock = fixtureEpoch.Add(7 * time.Second)
	_, err = f.matchService.SubmitAnswer(ctx, m.ID, teamB, answer, "player-b")
	assert.ErrorIs(t, err, ErrMatchDecided)
}

func TestSubmitAnswer_NotCompetitor(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)

	outsider := f.teams[2].ID // plays in match 1, not match 0
	_, err = f.matchService.SubmitAnswer(ctx, m.ID, outsider, "whatever", "")
	assert.ErrorIs(t, err, ErrNotCompetitor)
}

func TestSubmitAnswer_AlreadyAnswered(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)

	teamA := f.teams[0].ID

	f.clock = fixtureEpoch.Add(3 * time.Second)
	result, err := f.matchService.SubmitAnswer(ctx, m.ID, teamA, "definitely wrong", "")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.IsCorrect)
	assert.False(t, result.MatchCompleted, "one wrong answer leaves the match live")

	assert.Equal(t, bracket.MatchLive, f.match(t, 1, 0).Status)

	_, err = f.matchService.SubmitAnswer(ctx, m.ID, teamA, "let me try again", "")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestSubmitAnswer_GradingIsTrimmedAndCaseInsensitive(t *testing.T) {
	f := setupMatchTest(t, "A", "B")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	answer := f.correctAnswer(t, *m)

	f.clock = fixtureEpoch.Add(time.Second)
	result, err := f.matchService.SubmitAnswer(ctx, m.ID, f.teams[0].ID, "  "+strings.ToUpper(answer)+"  ", "")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
}

func TestSubmitAnswer_DoubleElimination(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)

	teamA, teamB := f.teams[0].ID, f.teams[1].ID

	f.clock = fixtureEpoch.Add(4 * time.Second)
	_, err = f.matchService.SubmitAnswer(ctx, m.ID, teamA, "wrong one", "")
	require.NoError(t, err)

	f.clock = fixtureEpoch.Add(6 * time.Second)
	result, err := f.matchService.SubmitAnswer(ctx, m.ID, teamB, "wrong too", "")
	require.NoError(t, err)

	assert.True(t, result.MatchCompleted)
	assert.Nil(t, result.WinnerTeamID, "both wrong in time means nobody advances")

	completed := f.match(t, 1, 0)
	assert.Equal(t, bracket.MatchCompleted, completed.Status)
	assert.Nil(t, completed.WinnerTeamID)

	// The successor slot is permanently empty now, same as a bye.
	successor := f.match(t, 2, 0)
	assert.True(t, successor.Slot1Void)
	assert.Nil(t, successor.Team1ID)

	// The adjacent match's winner auto-advances through it without play.
	m1, err := f.matchService.StartMatch(ctx, f.match(t, 1, 1).ID)
	require.NoError(t, err)
	answer := f.correctAnswer(t, *m1)

	teamC := f.teams[2].ID
	f.clock = m1.QuestionStartedAt.Add(2 * time.Second)
	_, err = f.matchService.SubmitAnswer(ctx, m1.ID, teamC, answer, "")
	require.NoError(t, err)

	final := f.match(t, 2, 0)
	assert.Equal(t, bracket.MatchCompleted, final.Status)
	assert.True(t, final.IsBye)
	require.NotNil(t, final.WinnerTeamID)
	assert.Equal(t, teamC, *final.WinnerTeamID)

	tournament, err := f.stores.GetTournament(ctx, f.tournamentID.String())
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, tournament.Status)
	require.NotNil(t, tournament.WinnerTeamID)
	assert.Equal(t, teamC, *tournament.WinnerTeamID)
}

func TestSubmitAnswer_LateCorrectNeverWins(t *testing.T) {
	f := setupMatchTest(t, "A", "B")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	answer := f.correctAnswer(t, *m)

	teamA := f.teams[0].ID

	// 30s limit; the answer lands at 45s.
	f.clock = fixtureEpoch.Add(45 * time.Second)
	result, err := f.matchService.SubmitAnswer(ctx, m.ID, teamA, answer, "")
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.True(t, result.IsCorrect)
	assert.True(t, result.TimedOut)
	assert.False(t, result.MatchCompleted, "a sole late answer leaves the match unresolved")

	assert.Equal(t, bracket.MatchLive, f.match(t, 1, 0).Status)

	// The sweep settles it: nobody answered correctly in time.
	affected, err := f.matchService.SweepExpiredMatches(ctx)
	require.NoError(t, err)
	assert.Len(t, affected, 1)

	settled := f.match(t, 1, 0)
	assert.Equal(t, bracket.MatchCompleted, settled.Status)
	assert.Nil(t, settled.WinnerTeamID)
}

func TestForceResolve(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)

	teamA, teamB := f.teams[0].ID, f.teams[1].ID
	outsider := f.teams[2].ID

	_, err = f.matchService.ForceResolve(ctx, m.ID, &outsider)
	assert.ErrorIs(t, err, ErrNotCompetitor)

	resolved, err := f.matchService.ForceResolve(ctx, m.ID, &teamB)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, resolved.Status)
	require.NotNil(t, resolved.WinnerTeamID)
	assert.Equal(t, teamB, *resolved.WinnerTeamID)

	successor := f.match(t, 2, 0)
	require.NotNil(t, successor.Team1ID)
	assert.Equal(t, teamB, *successor.Team1ID)

	// Forcing again is a no-op, not an error, and cannot rewrite the winner.
	again, err := f.matchService.ForceResolve(ctx, m.ID, &teamA)
	require.NoError(t, err)
	require.NotNil(t, again.WinnerTeamID)
	assert.Equal(t, teamB, *again.WinnerTeamID)
}

func TestForceResolve_NoWinnerVoidsSlot(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m := f.match(t, 1, 0)
	resolved, err := f.matchService.ForceResolve(ctx, m.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, resolved.Status)
	assert.Nil(t, resolved.WinnerTeamID)

	successor := f.match(t, 2, 0)
	assert.True(t, successor.Slot1Void)
}

func TestSweepExpiredMatches_Chained(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m0, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	_, err = f.matchService.StartMatch(ctx, f.match(t, 1, 1).ID)
	require.NoError(t, err)

	f.clock = fixtureEpoch.Add(10 * time.Second)
	_, err = f.matchService.SubmitAnswer(ctx, m0.ID, f.teams[0].ID, "not it", "")
	require.NoError(t, err)

	// Past both deadlines with no winner anywhere.
	f.clock = fixtureEpoch.Add(31 * time.Second)
	affected, err := f.matchService.SweepExpiredMatches(ctx)
	require.NoError(t, err)
	assert.Len(t, affected, 2)

	assert.Equal(t, bracket.MatchCompleted, f.match(t, 1, 0).Status)
	assert.Equal(t, bracket.MatchCompleted, f.match(t, 1, 1).Status)

	// Both feeder voids chain into the final, which collapses winnerless,
	// completing the tournament without a champion.
	final := f.match(t, 2, 0)
	assert.Equal(t, bracket.MatchCompleted, final.Status)
	assert.Nil(t, final.WinnerTeamID)
	assert.True(t, final.Slot1Void)
	assert.True(t, final.Slot2Void)

	tournament, err := f.stores.GetTournament(ctx, f.tournamentID.String())
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, tournament.Status)
	assert.Nil(t, tournament.WinnerTeamID)

	// A second sweep finds nothing to do.
	affected, err = f.matchService.SweepExpiredMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestSweepExpiredMatches_DecidedInWindowNotReported(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	m, err := f.matchService.StartMatch(ctx, f.match(t, 1, 0).ID)
	require.NoError(t, err)
	deadline := m.QuestionStartedAt.Add(30 * time.Second)

	f.clock = fixtureEpoch.Add(31 * time.Second)

	// An admin decides the match between the sweep's listing and its
	// per-match transaction: the expired-resolution pass finds nothing left
	// to do and must not report a bracket change.
	teamA := f.teams[0].ID
	_, err = f.matchService.ForceResolve(ctx, m.ID, &teamA)
	require.NoError(t, err)

	completed, err := f.matchService.resolveExpired(ctx, m.ID, deadline)
	require.NoError(t, err)
	assert.False(t, completed)

	// Whereas a match the sweep itself settles is reported.
	m1, err := f.matchService.StartMatch(ctx, f.match(t, 1, 1).ID)
	require.NoError(t, err)
	f.clock = m1.QuestionStartedAt.Add(31 * time.Second)
	completed, err = f.matchService.resolveExpired(ctx, m1.ID, m1.QuestionStartedAt.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestFullTournament(t *testing.T) {
	f := setupMatchTest(t, "A", "B", "C", "D")
	ctx := context.Background()

	teamA, teamC := f.teams[0].ID, f.teams[2].ID

	playAndWin := func(round, index int, winner uuid.UUID) {
		m, err := f.matchService.StartMatch(ctx, f.match(t, round, index).ID)
		require.NoError(t, err)
		answer := f.correctAnswer(t, *m)

		f.clock = m.QuestionStartedAt.Add(3 * time.Second)
		result, err := f.matchService.SubmitAnswer(ctx, m.ID, winner, answer, "")
		require.NoError(t, err)
		require.True(t, result.MatchCompleted)
	}

	playAndWin(1, 0, teamA)
	playAndWin(1, 1, teamC)

	final := f.match(t, 2, 0)
	require.NotNil(t, final.Team1ID)
	require.NotNil(t, final.Team2ID)
	assert.Equal(t, teamA, *final.Team1ID)
	assert.Equal(t, teamC, *final.Team2ID)

	playAndWin(2, 0, teamC)

	tournament, err := f.stores.GetTournament(ctx, f.tournamentID.String())
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, tournament.Status)
	require.NotNil(t, tournament.WinnerTeamID)
	assert.Equal(t, teamC, *tournament.WinnerTeamID, "the final's winner is the tournament's winner")
}
