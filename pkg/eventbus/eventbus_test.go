package eventbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kelmah/review-verification/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewEvent(t *testing.T) {
	event, err := NewEvent("verification.created", "review-verification", map[string]interface{}{"score": 0.9})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "verification.created", event.Type)
	assert.False(t, event.OccurredAt.IsZero())

	var payload map[string]float64
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, 0.9, payload["score"])
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("x", "y", make(chan int))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "reviews.verification.created", Subject("reviews", "verification.created"))
	assert.Equal(t, "verification.created", Subject("", "verification.created"))
}

func TestNoopPublisher(t *testing.T) {
	logger.SetForTesting(zap.NewNop())

	var p Publisher = NoopPublisher{}
	event, err := NewEvent("verification.created", "test", nil)
	require.NoError(t, err)

	assert.NoError(t, p.Publish(context.Background(), event))
	assert.NoError(t, p.Close())
}
