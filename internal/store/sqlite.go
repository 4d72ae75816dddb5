package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and applies pending
// migrations. If dbPath is empty, defaults to "./data/trust.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/trust.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// migrate applies the versioned migration list once, tracked by the
// schema_migrations table.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL
		)`)
	if err != nil {
		return err
	}

	var current int
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.sqlite); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindAgentsByName retrieves agent rows by case-insensitive name,
// most recently updated first.
func (s *SQLiteStore) FindAgentsByName(ctx context.Context, name string) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, session_package, account, chain_id, created_at, updated_at
		FROM agents WHERE name = ? COLLATE NOCASE
		ORDER BY updated_at DESC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

func scanAgents(rows *sql.Rows) ([]models.Agent, error) {
	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		var idStr string
		if err := rows.Scan(&idStr, &a.Name, &a.SessionPackage, &a.Account, &a.ChainID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		a.ID = id
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// CreateAgent inserts a new agent row with no credential attached.
func (s *SQLiteStore) CreateAgent(ctx context.Context, name string, chainID int64) (*models.Agent, error) {
	id := uuid.New()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, session_package, account, chain_id, created_at, updated_at)
		VALUES (?, ?, NULL, '', ?, ?, ?)
	`, id.String(), name, chainID, now, now)
	if err != nil {
		return nil, err
	}
	return &models.Agent{ID: id, Name: name, ChainID: chainID, CreatedAt: now, UpdatedAt: now}, nil
}

// SetAgentSession attaches a session package blob to an agent row.
func (s *SQLiteStore) SetAgentSession(ctx context.Context, id uuid.UUID, sessionPackage []byte, account string, chainID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agents SET session_package = ?, account = ?, chain_id = ?, updated_at = ?
		WHERE id = ?
	`, sessionPackage, account, chainID, time.Now(), id.String())
	return err
}

// TouchAgent bumps the updated_at timestamp.
func (s *SQLiteStore) TouchAgent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET updated_at = ? WHERE id = ?`, time.Now(), id.String())
	return err
}

// CreateFeedbackRequest inserts a pending feedback request. The
// caller-supplied struct gets its id, status and timestamps filled.
func (s *SQLiteStore) CreateFeedbackRequest(ctx context.Context, fr *models.FeedbackRequest) error {
	if fr.ID == uuid.Nil {
		fr.ID = uuid.New()
	}
	now := time.Now()
	fr.Status = models.FeedbackPending
	fr.CreatedAt = now
	fr.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_requests
			(id, client_address, from_agent, to_agent, comment, status, approved, approved_for_days, tx_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, '', ?, ?)
	`, fr.ID.String(), fr.ClientAddress, fr.FromAgent, fr.ToAgent, fr.Comment, fr.Status, now, now)
	return err
}

const feedbackColumns = `id, client_address, from_agent, to_agent, comment, status,
	approved, approved_at, approved_for_days, auth_blob, tx_hash, created_at, updated_at`

func scanFeedback(scan func(dest ...any) error) (*models.FeedbackRequest, error) {
	fr := &models.FeedbackRequest{}
	var idStr string
	var approvedInt int
	err := scan(
		&idStr, &fr.ClientAddress, &fr.FromAgent, &fr.ToAgent, &fr.Comment, &fr.Status,
		&approvedInt, &fr.ApprovedAt, &fr.ApprovedForDays, (*[]byte)(&fr.AuthBlob), &fr.TxHash,
		&fr.CreatedAt, &fr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	fr.ID = id
	fr.Approved = approvedInt == 1
	return fr, nil
}

// GetFeedbackRequest retrieves a feedback request by id.
func (s *SQLiteStore) GetFeedbackRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_requests WHERE id = ?`, id.String())
	fr, err := scanFeedback(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fr, nil
}

// ApproveFeedbackRequest records the approval and moves the request
// to the approved state.
func (s *SQLiteStore) ApproveFeedbackRequest(ctx context.Context, id uuid.UUID, approvedAt time.Time, days int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE feedback_requests
		SET approved = 1, approved_at = ?, approved_for_days = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, approvedAt, days, models.FeedbackApproved, time.Now(), id.String())
	return err
}

// SetFeedbackAuth attaches the issued authorization blob and moves
// the request to the authorized state.
func (s *SQLiteStore) SetFeedbackAuth(ctx context.Context, id uuid.UUID, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE feedback_requests SET auth_blob = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, blob, models.FeedbackAuthorized, time.Now(), id.String())
	return err
}

// MarkFeedbackGiven stores the on-chain transaction hash and moves
// the request to the feedback_given state.
func (s *SQLiteStore) MarkFeedbackGiven(ctx context.Context, id uuid.UUID, txHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE feedback_requests SET tx_hash = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, txHash, models.FeedbackGiven, time.Now(), id.String())
	return err
}

func (s *SQLiteStore) listFeedback(ctx context.Context, where string, arg string) ([]models.FeedbackRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_requests WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FeedbackRequest
	for rows.Next() {
		fr, err := scanFeedback(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}

// ListFeedbackByClient returns requests created by a client address,
// newest first.
func (s *SQLiteStore) ListFeedbackByClient(ctx context.Context, clientAddress string) ([]models.FeedbackRequest, error) {
	return s.listFeedback(ctx, `client_address = ? COLLATE NOCASE`, clientAddress)
}

// ListFeedbackByAgent returns requests targeting an agent, newest
// first.
func (s *SQLiteStore) ListFeedbackByAgent(ctx context.Context, agent string) ([]models.FeedbackRequest, error) {
	return s.listFeedback(ctx, `to_agent = ? COLLATE NOCASE`, agent)
}

// UpsertTask inserts the task if absent and bumps updated_at and
// last_message_at in either case. Subject, status and participants of
// an existing row are never overwritten.
func (s *SQLiteStore) UpsertTask(ctx context.Context, t *models.Task) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tasks
			(id, type, status, subject, client_address, agent_name, created_at, updated_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Type, t.Status, t.Subject, t.ClientAddress, t.AgentName, now, now, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET updated_at = ?, last_message_at = ? WHERE id = ?`, now, now, t.ID)
	return err
}

// GetTask retrieves a task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t := &models.Task{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, status, subject, client_address, agent_name, created_at, updated_at, last_message_at
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.Type, &t.Status, &t.Subject, &t.ClientAddress, &t.AgentName,
		&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// AppendMessage inserts a message and bumps the referenced task's
// timestamps when a task reference is set.
func (s *SQLiteStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, task_id, type, from_id, to_id, subject, body, context_type, context_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, m.ID, m.TaskID, m.Type, m.From, m.To, m.Subject, m.Body, m.ContextType, m.ContextID, m.CreatedAt)
	if err != nil {
		return err
	}

	if m.TaskID != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE tasks SET last_message_at = ?, updated_at = ? WHERE id = ?`,
			m.CreatedAt, m.CreatedAt, *m.TaskID)
	}
	return err
}

const messageColumns = `id, task_id, type, from_id, to_id, subject, body, context_type, context_id, is_read, created_at`

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var m models.Message
		var readInt int
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Type, &m.From, &m.To, &m.Subject, &m.Body,
			&m.ContextType, &m.ContextID, &readInt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Read = readInt == 1
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMessagesForClient returns the union of point messages and
// task-threaded messages addressed to or from a client address,
// newest first.
func (s *SQLiteStore) ListMessagesForClient(ctx context.Context, address string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE from_id = ? COLLATE NOCASE OR to_id = ? COLLATE NOCASE
		ORDER BY created_at DESC, id DESC
	`, address, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessagesForAgent returns messages addressed to or from an
// agent identity, newest first.
func (s *SQLiteStore) ListMessagesForAgent(ctx context.Context, agent string) ([]models.Message, error) {
	return s.ListMessagesForClient(ctx, agent)
}

// MarkMessageRead flips the read marker; reports whether a row
// matched.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PutAssociation upserts an association row keyed by its digest.
// Re-submitting the same record with an added signature fills the
// missing signature column.
func (s *SQLiteStore) PutAssociation(ctx context.Context, a *models.Association) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO associations
			(id, initiator, approver, valid_at, valid_until, interface_id, data,
			 initiator_signature, approver_signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			initiator_signature = CASE WHEN excluded.initiator_signature != '' THEN excluded.initiator_signature ELSE associations.initiator_signature END,
			approver_signature  = CASE WHEN excluded.approver_signature  != '' THEN excluded.approver_signature  ELSE associations.approver_signature END
	`, a.ID, a.Initiator, a.Approver, a.ValidAt, a.ValidUntil, a.InterfaceID, a.Data,
		a.InitiatorSignature, a.ApproverSignature, a.CreatedAt)
	return err
}

// GetAssociation retrieves an association by digest id.
func (s *SQLiteStore) GetAssociation(ctx context.Context, id string) (*models.Association, error) {
	a := &models.Association{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, initiator, approver, valid_at, valid_until, interface_id, data,
			initiator_signature, approver_signature, created_at
		FROM associations WHERE id = ?
	`, id).Scan(&a.ID, &a.Initiator, &a.Approver, &a.ValidAt, &a.ValidUntil, &a.InterfaceID,
		&a.Data, &a.InitiatorSignature, &a.ApproverSignature, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// CountAgents returns the total number of agent rows.
func (s *SQLiteStore) CountAgents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count)
	return count, err
}

// CountFeedbackByStatus returns feedback request counts per status.
func (s *SQLiteStore) CountFeedbackByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM feedback_requests GROUP BY status`)
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
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastActivity returns the most recent feedback request update.
func (s *SQLiteStore) LastActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM feedback_requests ORDER BY updated_at DESC LIMIT 1`).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
