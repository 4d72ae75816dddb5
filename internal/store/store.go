package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

// DataStore defines the interface for persistent storage of agents,
// feedback requests, tasks, messages and associations. Both
// PostgresStore and SQLiteStore implement this interface. Lookups
// return (nil, nil) when no row matches.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Agent operations. FindAgentsByName is case-insensitive and
	// orders by updated_at descending; callers pick the row they
	// want (credential-bearing rows win over recency).
	FindAgentsByName(ctx context.Context, name string) ([]models.Agent, error)
	CreateAgent(ctx context.Context, name string, chainID int64) (*models.Agent, error)
	SetAgentSession(ctx context.Context, id uuid.UUID, sessionPackage []byte, account string, chainID int64) error
	TouchAgent(ctx context.Context, id uuid.UUID) error

	// Feedback request operations. Mutators are plain setters; the
	// lifecycle guards live in the feedback service.
	CreateFeedbackRequest(ctx context.Context, fr *models.FeedbackRequest) error
	GetFeedbackRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error)
	ApproveFeedbackRequest(ctx context.Context, id uuid.UUID, approvedAt time.Time, days int64) error
	SetFeedbackAuth(ctx context.Context, id uuid.UUID, blob []byte) error
	MarkFeedbackGiven(ctx context.Context, id uuid.UUID, txHash string) error
	ListFeedbackByClient(ctx context.Context, clientAddress string) ([]models.FeedbackRequest, error)
	ListFeedbackByAgent(ctx context.Context, agent string) ([]models.FeedbackRequest, error)

	// Task and message operations. UpsertTask is insert-if-absent,
	// bump-timestamps-always. AppendMessage always inserts and bumps
	// the referenced task when one is set.
	UpsertTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessagesForClient(ctx context.Context, address string) ([]models.Message, error)
	ListMessagesForAgent(ctx context.Context, agent string) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, id string) (bool, error)

	// Association operations
	PutAssociation(ctx context.Context, a *models.Association) error
	GetAssociation(ctx context.Context, id string) (*models.Association, error)

	// Aggregates feeding the trend statistics cache
	CountAgents(ctx context.Context) (int64, error)
	CountFeedbackByStatus(ctx context.Context) (map[string]int64, error)
	CountMessages(ctx context.Context) (int64, error)
	LastActivity(ctx context.Context) (*time.Time, error)
}
