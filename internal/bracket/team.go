package bracket

import "github.com/google/uuid"

type Team struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	Color        string    `db:"color" json:"color"`
	Seed         int       `db:"seed" json:"seed"`
}
