package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection
// pool and applies pending migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}

	var current int
	err = s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.postgres); err != nil {
			tx.Rollback(ctx)
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
			m.version, time.Now()); err != nil {
			tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindAgentsByName retrieves agent rows by case-insensitive name,
// most recently updated first.
func (s *PostgresStore) FindAgentsByName(ctx context.Context, name string) ([]models.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, session_package, account, chain_id, created_at, updated_at
		FROM agents WHERE lower(name) = lower($1)
		ORDER BY updated_at DESC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.SessionPackage, &a.Account, &a.ChainID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// CreateAgent inserts a new agent row with no credential attached.
func (s *PostgresStore) CreateAgent(ctx context.Context, name string, chainID int64) (*models.Agent, error) {
	id := uuid.New()
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, name, session_package, account, chain_id, created_at, updated_at)
		VALUES ($1, $2, NULL, '', $3, $4, $5)
	`, id, name, chainID, now, now)
	if err != nil {
		return nil, err
	}
	return &models.Agent{ID: id, Name: name, ChainID: chainID, CreatedAt: now, UpdatedAt: now}, nil
}

// SetAgentSession attaches a session package blob to an agent row.
func (s *PostgresStore) SetAgentSession(ctx context.Context, id uuid.UUID, sessionPackage []byte, account string, chainID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE agents SET session_package = $1, account = $2, chain_id = $3, updated_at = $4
		WHERE id = $5
	`, sessionPackage, account, chainID, time.Now(), id)
	return err
}

// TouchAgent bumps the updated_at timestamp.
func (s *PostgresStore) TouchAgent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET updated_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// CreateFeedbackRequest inserts a pending feedback request.
func (s *PostgresStore) CreateFeedbackRequest(ctx context.Context, fr *models.FeedbackRequest) error {
	if fr.ID == uuid.Nil {
		fr.ID = uuid.New()
	}
	now := time.Now()
	fr.Status = models.FeedbackPending
	fr.CreatedAt = now
	fr.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_requests
			(id, client_address, from_agent, to_agent, comment, status, approved, approved_for_days, tx_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, '', $7, $8)
	`, fr.ID, fr.ClientAddress, fr.FromAgent, fr.ToAgent, fr.Comment, fr.Status, now, now)
	return err
}

func scanFeedbackPg(row pgx.Row) (*models.FeedbackRequest, error) {
	fr := &models.FeedbackRequest{}
	err := row.Scan(
		&fr.ID, &fr.ClientAddress, &fr.FromAgent, &fr.ToAgent, &fr.Comment, &fr.Status,
		&fr.Approved, &fr.ApprovedAt, &fr.ApprovedForDays, &fr.AuthBlob, &fr.TxHash,
		&fr.CreatedAt, &fr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fr, nil
}

// GetFeedbackRequest retrieves a feedback request by id.
func (s *PostgresStore) GetFeedbackRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_requests WHERE id = $1`, id)
	fr, err := scanFeedbackPg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fr, nil
}

// ApproveFeedbackRequest records the approval and moves the request
// to the approved state.
func (s *PostgresStore) ApproveFeedbackRequest(ctx context.Context, id uuid.UUID, approvedAt time.Time, days int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feedback_requests
		SET approved = TRUE, approved_at = $1, approved_for_days = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, approvedAt, days, models.FeedbackApproved, time.Now(), id)
	return err
}

// SetFeedbackAuth attaches the issued authorization blob.
func (s *PostgresStore) SetFeedbackAuth(ctx context.Context, id uuid.UUID, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feedback_requests SET auth_blob = $1, status = $2, updated_at = $3
		WHERE id = $4
	`, blob, models.FeedbackAuthorized, time.Now(), id)
	return err
}

// MarkFeedbackGiven stores the on-chain transaction hash.
func (s *PostgresStore) MarkFeedbackGiven(ctx context.Context, id uuid.UUID, txHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE feedback_requests SET tx_hash = $1, status = $2, updated_at = $3
		WHERE id = $4
	`, txHash, models.FeedbackGiven, time.Now(), id)
	return err
}

func (s *PostgresStore) listFeedback(ctx context.Context, where string, arg string) ([]models.FeedbackRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_requests WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FeedbackRequest
	for rows.Next() {
		fr, err := scanFeedbackPg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}

// ListFeedbackByClient returns requests created by a client address,
// newest first.
func (s *PostgresStore) ListFeedbackByClient(ctx context.Context, clientAddress string) ([]models.FeedbackRequest, error) {
	return s.listFeedback(ctx, `lower(client_address) = lower($1)`, clientAddress)
}

// ListFeedbackByAgent returns requests targeting an agent, newest
// first.
func (s *PostgresStore) ListFeedbackByAgent(ctx context.Context, agent string) ([]models.FeedbackRequest, error) {
	return s.listFeedback(ctx, `lower(to_agent) = lower($1)`, agent)
}

// UpsertTask inserts the task if absent and bumps updated_at and
// last_message_at in either case.
func (s *PostgresStore) UpsertTask(ctx context.Context, t *models.Task) error {
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks
			(id, type, status, subject, client_address, agent_name, created_at, updated_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.Type, t.Status, t.Subject, t.ClientAddress, t.AgentName, now, now, now)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE tasks SET updated_at = $1, last_message_at = $2 WHERE id = $3`, now, now, t.ID)
	return err
}

// GetTask retrieves a task by id.
func (s *PostgresStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t := &models.Task{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, type, status, subject, client_address, agent_name, created_at, updated_at, last_message_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.Type, &t.Status, &t.Subject, &t.ClientAddress, &t.AgentName,
		&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// AppendMessage inserts a message and bumps the referenced task's
// timestamps when a task reference is set.
func (s *PostgresStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages
			(id, task_id, type, from_id, to_id, subject, body, context_type, context_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
	`, m.ID, m.TaskID, m.Type, m.From, m.To, m.Subject, m.Body, m.ContextType, m.ContextID, m.CreatedAt)
	if err != nil {
		return err
	}

	if m.TaskID != nil {
		_, err = s.pool.Exec(ctx,
			`UPDATE tasks SET last_message_at = $1, updated_at = $2 WHERE id = $3`,
			m.CreatedAt, m.CreatedAt, *m.TaskID)
	}
	return err
}

func (s *PostgresStore) listMessages(ctx context.Context, identity string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE lower(from_id) = lower($1) OR lower(to_id) = lower($1)
		ORDER BY created_at DESC, id DESC
	`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Type, &m.From, &m.To, &m.Subject, &m.Body,
			&m.ContextType, &m.ContextID, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMessagesForClient returns messages addressed to or from a
// client address, newest first.
func (s *PostgresStore) ListMessagesForClient(ctx context.Context, address string) ([]models.Message, error) {
	return s.listMessages(ctx, address)
}

// ListMessagesForAgent returns messages addressed to or from an
// agent identity, newest first.
func (s *PostgresStore) ListMessagesForAgent(ctx context.Context, agent string) ([]models.Message, error) {
	return s.listMessages(ctx, agent)
}

// MarkMessageRead flips the read marker; reports whether a row
// matched.
func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PutAssociation upserts an association row keyed by its digest.
func (s *PostgresStore) PutAssociation(ctx context.Context, a *models.Association) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO associations
			(id, initiator, approver, valid_at, valid_until, interface_id, data,
			 initiator_signature, approver_signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			initiator_signature = CASE WHEN EXCLUDED.initiator_signature != '' THEN EXCLUDED.initiator_signature ELSE associations.initiator_signature END,
			approver_signature  = CASE WHEN EXCLUDED.approver_signature  != '' THEN EXCLUDED.approver_signature  ELSE associations.approver_signature END
	`, a.ID, a.Initiator, a.Approver, a.ValidAt, a.ValidUntil, a.InterfaceID, a.Data,
		a.InitiatorSignature, a.ApproverSignature, a.CreatedAt)
	return err
}

// GetAssociation retrieves an association by digest id.
func (s *PostgresStore) GetAssociation(ctx context.Context, id string) (*models.Association, error) {
	a := &models.Association{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, initiator, approver, valid_at, valid_until, interface_id, data,
			initiator_signature, approver_signature, created_at
		FROM associations WHERE id = $1
	`, id).Scan(&a.ID, &a.Initiator, &a.Approver, &a.ValidAt, &a.ValidUntil, &a.InterfaceID,
		&a.Data, &a.InitiatorSignature, &a.ApproverSignature, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// CountAgents returns the total number of agent rows.
func (s *PostgresStore) CountAgents(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count)
	return count, err
}

// CountFeedbackByStatus returns feedback request counts per status.
func (s *PostgresStore) CountFeedbackByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM feedback_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

// CountMessages returns the total number of messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastActivity returns the most recent feedback request update.
func (s *PostgresStore) LastActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM feedback_requests`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}
