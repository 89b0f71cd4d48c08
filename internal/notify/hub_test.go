package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(4)
	b, cancelB := h.Subscribe(4)
	defer cancelA()
	defer cancelB()

	h.Publish(Event{Type: RequestSubmitted, At: time.Now()})

	assert.Equal(t, RequestSubmitted, (<-a).Type)
	assert.Equal(t, RequestSubmitted, (<-b).Type)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(Event{Type: DonorRegistered})
	h.Publish(Event{Type: RequestSubmitted})

	assert.Equal(t, DonorRegistered, (<-ch).Type)
	select {
	case e := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", e.Type)
	default:
	}
}

func TestHubUnsubscribeAndClose(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	other, _ := h.Subscribe(1)
	h.Close()
	_, open = <-other
	assert.False(t, open)

	late, _ := h.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}

func TestStatusMessage(t *testing.T) {
	done := time.Date(2024, 6, 2, 14, 0, 0, 0, time.UTC)
	msg, err := StatusMessage(domain.BloodRequest{
		ID:            "0f8e7d6c-aaaa-bbbb-cccc-1234567890ab",
		RequesterName: "Jane <Doe>",
		BloodGroup:    domain.ONegative,
		City:          "Metro",
		Email:         "jane@example.com",
		UnitsNeeded:   2,
		Status:        domain.StatusFulfilled,
		FulfilledDate: &done,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, msg.To)
	assert.Equal(t, "Blood request 0f8e7d6c: fulfilled", msg.Subject)
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	assert.Contains(t, msg.HTML, "2 unit(s) of O-")
	assert.True(t, strings.Contains(msg.HTML, "Fulfilled on 2 Jun 2024"))
}
