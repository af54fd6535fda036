package events

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/quizarena/quiz-arena/internal/logger"
)

// Broadcaster pushes bracket snapshots to every connected viewer over SSE.
type Broadcaster struct {
	server *sse.Server
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{server: &sse.Server{}}
}

// Handler serves the event stream endpoint.
func (b *Broadcaster) Handler() http.Handler {
	return b.server
}

type bracketEvent struct {
	Type         string    `json:"type"`
	TournamentID uuid.UUID `json:"tournament_id"`
	Data         any       `json:"data"`
}

// PublishBracket broadcasts a tournament's current bracket state.
func (b *Broadcaster) PublishBracket(tournamentID uuid.UUID, data any) {
	payload, err := json.Marshal(bracketEvent{
		Type:         "bracket",
		TournamentID: tournamentID,
		Data:         data,
	})
	if err != nil {
		logger.Error("sse: failed to marshal bracket event", "error", err)
		return
	}

	msg := &sse.Message{}
	msg.AppendData(string(payload))

	if err := b.server.Publish(msg); err != nil {
		logger.Error("sse: publish failed", "error", err)
	}
}
