package events

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishBracket(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tournamentID := uuid.New()
	snapshot := map[string]string{"round": "final"}

	// Publish until the subscriber has the event; the subscription races the
	// response handshake, and events sent before it are dropped.
	go func() {
		// A payload JSON cannot represent is dropped without disturbing the
		// stream; the subscriber must only ever see the real snapshot.
		b.PublishBracket(tournamentID, make(chan int))

		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			b.PublishBracket(tournamentID, snapshot)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var payload string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			payload = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, payload, "stream closed before an event arrived")

	var event struct {
		Type         string            `json:"type"`
		TournamentID uuid.UUID         `json:"tournament_id"`
		Data         map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, "bracket", event.Type)
	assert.Equal(t, tournamentID, event.TournamentID)
	assert.Equal(t, snapshot, event.Data)
}
