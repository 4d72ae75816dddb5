// Package feedback implements the feedback-authorization lifecycle:
// pending, approved, authorized, feedback_given. State only moves
// forward; no unapprove is modeled.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/credentials"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/registry"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
)

var (
	ErrNotFound        = errors.New("feedback request not found")
	ErrNotApproved     = errors.New("feedback request is not approved")
	ErrApprovalExpired = errors.New("approval expired")
	ErrInvalidInput    = errors.New("invalid feedback input")
)

// AuthSkillID names the skill an issued authorization is scoped to.
const AuthSkillID = "feedback/issue-auth"

// defaultAuthValidity bounds an authorization's expiry when the
// approval carries no window.
const defaultAuthValidity = 7 * 24 * time.Hour

// CredentialSource resolves signing credentials for agents.
type CredentialSource interface {
	Resolve(ctx context.Context, name string, chainID int64) (*credentials.SessionPackage, error)
}

// Service drives feedback request state transitions. Lifecycle
// guards live here; the store's mutators are plain setters.
type Service struct {
	db      store.DataStore
	creds   CredentialSource
	issuer  registry.AuthIssuer
	chainID int64
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(db store.DataStore, creds CredentialSource, issuer registry.AuthIssuer, chainID int64, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		creds:   creds,
		issuer:  issuer,
		chainID: chainID,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateInput carries the fields for a new feedback request.
type CreateInput struct {
	ClientAddress string
	FromAgent     string
	ToAgent       string
	Comment       string
}

// Create inserts a pending request. The task and notification
// message are best effort; their failures surface as warnings and
// never roll back the insert.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.FeedbackRequest, []string, error) {
	if !common.IsHexAddress(in.ClientAddress) {
		return nil, nil, fmt.Errorf("%w: clientAddress must be a hex address", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ToAgent) == "" {
		return nil, nil, fmt.Errorf("%w: agent is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Comment) == "" {
		return nil, nil, fmt.Errorf("%w: comment is required", ErrInvalidInput)
	}

	fr := &models.FeedbackRequest{
		ClientAddress: common.HexToAddress(in.ClientAddress).Hex(),
		FromAgent:     strings.TrimSpace(in.FromAgent),
		ToAgent:       strings.TrimSpace(in.ToAgent),
		Comment:       in.Comment,
	}
	if err := s.db.CreateFeedbackRequest(ctx, fr); err != nil {
		return nil, nil, fmt.Errorf("create feedback request: %w", err)
	}
	metrics.FeedbackRequested.Inc()

	var warnings []string
	taskID := "feedback-" + fr.ID.String()
	task := &models.Task{
		ID:            taskID,
		Type:          "feedback-authorization-request",
		Status:        "open",
		Subject:       "Feedback authorization request",
		ClientAddress: fr.ClientAddress,
		AgentName:     fr.ToAgent,
	}
	if err := s.db.UpsertTask(ctx, task); err != nil {
		s.logger.Warn().Err(err).Str("request_id", fr.ID.String()).Msg("feedback task creation failed")
		warnings = append(warnings, "task creation failed")
	} else if err := s.db.AppendMessage(ctx, &models.Message{
		TaskID:      &taskID,
		Type:        "feedback-request",
		From:        fr.ClientAddress,
		To:          fr.ToAgent,
		Subject:     "Feedback authorization requested",
		Body:        fr.Comment,
		ContextType: "feedback_request",
		ContextID:   fr.ID.String(),
	}); err != nil {
		s.logger.Warn().Err(err).Str("request_id", fr.ID.String()).Msg("feedback message creation failed")
		warnings = append(warnings, "notification message failed")
	}

	return fr, warnings, nil
}

// Approve records the target operator's approval. The request id,
// source and target must all match the stored row.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, fromAgent, toAgent string, days int64) (*models.FeedbackRequest, []string, error) {
	if days <= 0 {
		return nil, nil, fmt.Errorf("%w: approvedForDays must be positive", ErrInvalidInput)
	}

	fr, err := s.db.GetFeedbackRequest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get feedback request: %w", err)
	}
	if fr == nil {
		return nil, nil, ErrNotFound
	}
	if !strings.EqualFold(fr.FromAgent, fromAgent) || !strings.EqualFold(fr.ToAgent, toAgent) {
		return nil, nil, fmt.Errorf("%w: from/to do not match the request", ErrInvalidInput)
	}

	approvedAt := s.now()
	if err := s.db.ApproveFeedbackRequest(ctx, id, approvedAt, days); err != nil {
		return nil, nil, fmt.Errorf("approve feedback request: %w", err)
	}
	fr.Approved = true
	fr.ApprovedAt = &approvedAt
	fr.ApprovedForDays = days
	fr.Status = models.FeedbackApproved

	warnings := s.notify(ctx, fr, "feedback-approved", "Feedback request approved",
		fmt.Sprintf("Approved for %d days", days))
	return fr, warnings, nil
}

// IssueAuthorization checks the four preconditions in order, each a
// distinct failure: request exists, request is approved, approval
// window still open, credential resolves. On success the signed blob
// is persisted and the status moves to authorized.
func (s *Service) IssueAuthorization(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, []string, error) {
	fr, err := s.db.GetFeedbackRequest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get feedback request: %w", err)
	}
	if fr == nil {
		return nil, nil, ErrNotFound
	}
	if !fr.Approved || fr.ApprovedAt == nil {
		return nil, nil, ErrNotApproved
	}

	expiry := s.now().Add(defaultAuthValidity)
	if fr.ApprovedForDays > 0 {
		windowEnd := fr.ApprovedAt.Add(time.Duration(fr.ApprovedForDays) * 24 * time.Hour)
		if s.now().After(windowEnd) {
			return nil, nil, ErrApprovalExpired
		}
		expiry = windowEnd
	}

	pkg, err := s.creds.Resolve(ctx, fr.ToAgent, s.chainID)
	if err != nil {
		return nil, nil, err
	}
	key, err := pkg.Key()
	if err != nil {
		return nil, nil, err
	}

	blob, err := s.issuer.Issue(ctx, key, registry.AuthRequest{
		ClientAddress: fr.ClientAddress,
		AgentID:       pkg.AgentID,
		ChainID:       pkg.ChainID,
		Skill:         AuthSkillID,
		Expiry:        expiry,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("issue authorization: %w", err)
	}

	if err := s.db.SetFeedbackAuth(ctx, id, blob); err != nil {
		return nil, nil, fmt.Errorf("persist authorization: %w", err)
	}
	fr.AuthBlob = json.RawMessage(blob)
	fr.Status = models.FeedbackAuthorized
	metrics.FeedbackAuthorized.Inc()

	warnings := s.notify(ctx, fr, "feedback-authorized", "Feedback authorization issued", string(blob))
	return fr, warnings, nil
}

// MarkGiven records the on-chain transaction hash. Deliberately
// permissive about prior status: the tx hash is treated as ground
// truth for fulfillment.
func (s *Service) MarkGiven(ctx context.Context, id uuid.UUID, txHash string) (*models.FeedbackRequest, error) {
	if strings.TrimSpace(txHash) == "" {
		return nil, fmt.Errorf("%w: txHash is required", ErrInvalidInput)
	}

	fr, err := s.db.GetFeedbackRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get feedback request: %w", err)
	}
	if fr == nil {
		return nil, ErrNotFound
	}

	if err := s.db.MarkFeedbackGiven(ctx, id, txHash); err != nil {
		return nil, fmt.Errorf("mark feedback given: %w", err)
	}
	fr.TxHash = txHash
	fr.Status = models.FeedbackGiven
	return fr, nil
}

// ListByClient returns a client's requests, newest first.
func (s *Service) ListByClient(ctx context.Context, clientAddress string) ([]models.FeedbackRequest, error) {
	if !common.IsHexAddress(clientAddress) {
		return nil, fmt.Errorf("%w: clientAddress must be a hex address", ErrInvalidInput)
	}
	return s.db.ListFeedbackByClient(ctx, clientAddress)
}

// ListByAgent returns requests targeting an agent, newest first.
func (s *Service) ListByAgent(ctx context.Context, agent string) ([]models.FeedbackRequest, error) {
	if strings.TrimSpace(agent) == "" {
		return nil, fmt.Errorf("%w: agent is required", ErrInvalidInput)
	}
	return s.db.ListFeedbackByAgent(ctx, agent)
}

func (s *Service) notify(ctx context.Context, fr *models.FeedbackRequest, msgType, subject, body string) []string {
	taskID := "feedback-" + fr.ID.String()
	err := s.db.AppendMessage(ctx, &models.Message{
		TaskID:      &taskID,
		Type:        msgType,
		From:        fr.ToAgent,
		To:          fr.ClientAddress,
		Subject:     subject,
		Body:        body,
		ContextType: "feedback_request",
		ContextID:   fr.ID.String(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", fr.ID.String()).Str("type", msgType).Msg("notification message failed")
		return []string{"notification message failed"}
	}
	return nil
}
