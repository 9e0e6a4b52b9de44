package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := new(MockConn)
	var payload []byte
	conn.On("Publish", SubjectQueryCompleted, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).([]byte) }).
		Return(nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := NewNATSPublisher(conn, "").PublishQueryCompleted(context.Background(), QueryCompleted{
		ID:         "q-1",
		Query:      "rendement avenue de la gare 12 martigny",
		Intent:     "financial",
		Success:    true,
		Confidence: 0.79,
		Iterations: 1,
		At:         at,
	})
	require.NoError(t, err)
	conn.AssertExpectations(t)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "financial", decoded["intent"])
	assert.Equal(t, []any{}, decoded["warnings"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["at"])
}

func TestNATSPublisher_Errors(t *testing.T) {
	conn := new(MockConn)
	conn.On("Publish", "custom.subject", mock.Anything).Return(errors.New("disconnected"))

	pub := NewNATSPublisher(conn, "custom.subject")
	err := pub.PublishQueryCompleted(context.Background(), QueryCompleted{})
	assert.ErrorContains(t, err, "publish custom.subject: disconnected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.PublishQueryCompleted(ctx, QueryCompleted{}), context.Canceled)
	conn.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishQueryCompleted(context.Background(), QueryCompleted{}))
}
