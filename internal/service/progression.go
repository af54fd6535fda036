package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quizarena/quiz-arena/internal/bracket"
	"github.com/quizarena/quiz-arena/internal/store"
)

// progressCompletion pushes a completed match's outcome into the bracket:
// a winner is written into the successor slot, a winnerless completion voids
// it, and the final completes the tournament. Successors that become
// structurally decided (bye against a void slot, or two void slots) resolve
// immediately and recurse, so chained byes reach a fixed point inside the
// caller's transaction.
func progressCompletion(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, m *bracket.Match) error {
	if m.NextMatchID == nil {
		// The final. A nil winner here means the whole bracket collapsed
		// without a champion; the tournament still completes.
		if err := st.CompleteTournamentTx(ctx, tx, m.TournamentID, m.WinnerTeamID); err != nil {
			return fmt.Errorf("failed to complete tournament: %w", err)
		}
		return nil
	}

	if m.NextSlot == nil {
		return fmt.Errorf("match %s has a successor but no slot", m.ID)
	}

	if m.WinnerTeamID != nil {
		// Write-once: if the slot is already taken the update is a no-op,
		// which is the correct behavior for duplicate triggers.
		if _, err := st.FillMatchSlotTx(ctx, tx, *m.NextMatchID, *m.NextSlot, *m.WinnerTeamID); err != nil {
			return fmt.Errorf("failed to fill successor slot: %w", err)
		}
	} else {
		// No winner advances; the successor slot can never be filled and
		// downstream treats it exactly like a bye.
		if _, err := st.VoidMatchSlotTx(ctx, tx, *m.NextMatchID, *m.NextSlot); err != nil {
			return fmt.Errorf("failed to void successor slot: %w", err)
		}
	}

	next, err := st.GetMatchTx(ctx, tx, m.NextMatchID.String())
	if err != nil {
		return fmt.Errorf("failed to get successor match: %w", err)
	}
	return resolveStructural(ctx, tx, st, next)
}

// resolveStructural completes a match that can never be played: one team
// against a void slot auto-advances as a bye, and two void slots complete
// the match winnerless. Matches still waiting on a feeder are left alone.
func resolveStructural(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, m *bracket.Match) error {
	if m.Status != bracket.MatchPending {
		return nil
	}

	winner, isBye := m.SoleTeam()
	if !isBye && !m.Voided() {
		return nil
	}

	ok, err := st.CompleteMatchTx(ctx, tx, m.ID, winner, true)
	if err != nil {
		return fmt.Errorf("failed to complete bye match: %w", err)
	}
	if !ok {
		return nil
	}

	m.Status = bracket.MatchCompleted
	m.WinnerTeamID = winner
	return progressCompletion(ctx, tx, st, m)
}
