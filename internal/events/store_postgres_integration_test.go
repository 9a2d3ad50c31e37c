//go:build integration

package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"keybridge/internal/claims/models"
	id "keybridge/pkg/domain"
	"keybridge/pkg/testutil/containers"
)

type PostgresOutboxSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	outbox *PostgresOutbox
}

func TestPostgresOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresOutboxSuite))
}

func (s *PostgresOutboxSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.outbox = NewPostgresOutbox(s.pg.DB)
}

func (s *PostgresOutboxSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background()))
}

func (s *PostgresOutboxSuite) event(value string, eventType models.DomainEventType) models.DomainEvent {
	return models.DomainEvent{
		Type:     eventType,
		KeyID:    id.NewKeyID(),
		KeyValue: value,
		KeyKind:  "email",
		State:    "READY",
	}
}

func (s *PostgresOutboxSuite) TestAppendAndDrainOrder() {
	ctx := context.Background()
	s.Require().NoError(s.outbox.Append(ctx, s.event("a@example.com", models.DomainKeyRegistered)))
	s.Require().NoError(s.outbox.Append(ctx, s.event("b@example.com", models.DomainKeyReady)))

	entries, err := s.outbox.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("a@example.com", entries[0].KeyValue, "oldest first")
	s.Equal(models.DomainKeyRegistered, entries[0].EventType)

	s.Require().NoError(s.outbox.MarkPublished(ctx, entries[0].ID))

	entries, err = s.outbox.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("b@example.com", entries[0].KeyValue)
}

func (s *PostgresOutboxSuite) TestUnpublishedHonorsLimit() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.outbox.Append(ctx, s.event("a@example.com", models.DomainKeyRegistered)))
	}
	entries, err := s.outbox.Unpublished(ctx, 3)
	s.Require().NoError(err)
	s.Len(entries, 3)
}

func (s *PostgresOutboxSuite) TestMarkPublishedIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.outbox.Append(ctx, s.event("a@example.com", models.DomainKeyRegistered)))
	entries, err := s.outbox.Unpublished(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	s.Require().NoError(s.outbox.MarkPublished(ctx, entries[0].ID))
	s.Require().NoError(s.outbox.MarkPublished(ctx, entries[0].ID))

	entries, err = s.outbox.Unpublished(ctx, 1)
	s.Require().NoError(err)
	s.Empty(entries)
}
