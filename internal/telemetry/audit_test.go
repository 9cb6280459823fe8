package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"battle-chat/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "battlechat.audit", "battle-chat", "dev")

	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "battlechat.audit", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if ok {
			captured = envelope
		}
		return ok
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "room 5 created", "req-1", "userA")

	publisher.AssertExpectations(t)
	require.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "battle-chat", captured.Service)
	assert.Equal(t, "dev", captured.Environment)
	assert.Equal(t, "req-1", captured.RequestID)
	assert.Equal(t, "userA", captured.UserUID)
	assert.Equal(t, "INFO", captured.Payload.Level)
	assert.Equal(t, "room 5 created", captured.Payload.Text)
	assert.NotEmpty(t, captured.OccurredAt)
}

func TestAuditEmitterSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "battlechat.audit", "battle-chat", "dev")

	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker gone")).Once()

	emitter.Emit(context.Background(), "INFO", "message posted", "req-2", "userA")

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter

	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", "userA")
}
