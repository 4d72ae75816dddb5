// Package skills binds the dispatcher's skill identifiers to the
// lifecycle services. Handlers validate payload shape, enforce
// tenancy, call one service operation and map its errors into the
// transport taxonomy.
package skills

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/assoc"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/credentials"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/feedback"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/trends"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/validation"
)

// Deps carries everything the skill handlers need.
type Deps struct {
	DB         store.DataStore
	Feedback   *feedback.Service
	Validation *validation.Service
	Trends     *trends.Cache
	Logger     zerolog.Logger
}

// Register binds every skill to the dispatcher.
func Register(d *a2a.Dispatcher, deps Deps) {
	d.Register("feedback/request", deps.feedbackRequest)
	d.Register("feedback/approve", deps.feedbackApprove)
	d.Register("feedback/issue-auth", deps.feedbackIssueAuth)
	d.Register("feedback/mark-given", deps.feedbackMarkGiven)
	d.Register("feedback/list-by-client", deps.feedbackListByClient)
	d.Register("feedback/list-by-agent", deps.feedbackListByAgent)
	d.Register("validation/respond", deps.validationRespond)
	d.Register("association/submit", deps.associationSubmit)
	d.Register("thread/send", deps.threadSend)
	d.Register("thread/list-by-client", deps.threadListByClient)
	d.Register("thread/list-by-agent", deps.threadListByAgent)
	d.Register("thread/mark-read", deps.threadMarkRead)
	d.Register("stats/trends", deps.statsTrends)
	d.Register("agent/ping", deps.agentPing)
}

// stringField returns a required string payload field.
func stringField(payload map[string]any, key string) (string, *a2a.Error) {
	v, ok := payload[key]
	if !ok {
		return "", a2a.Validation("%s is required", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", a2a.Validation("%s must be a non-empty string", key)
	}
	return s, nil
}

// optString returns an optional string payload field.
func optString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// intField returns a required integer payload field. JSON numbers
// arrive as float64.
func intField(payload map[string]any, key string) (int64, *a2a.Error) {
	v, ok := payload[key]
	if !ok {
		return 0, a2a.Validation("%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, a2a.Validation("%s must be a number", key)
	}
}

func optInt(payload map[string]any, key string, fallback int64) int64 {
	if n, ok := payload[key].(float64); ok {
		return int64(n)
	}
	return fallback
}

func optBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

// uuidField parses a required request id field.
func uuidField(payload map[string]any, key string) (uuid.UUID, *a2a.Error) {
	s, aerr := stringField(payload, key)
	if aerr != nil {
		return uuid.Nil, aerr
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, a2a.Validation("%s must be a UUID", key)
	}
	return id, nil
}

// mapError translates service sentinel errors into taxonomy errors.
// Unrecognized errors are upstream failures.
func mapError(err error) *a2a.Error {
	switch {
	case errors.Is(err, feedback.ErrInvalidInput),
		errors.Is(err, validation.ErrInvalidInput),
		errors.Is(err, assoc.ErrInvalidRecord),
		errors.Is(err, assoc.ErrInvalidSignature):
		return a2a.Validation("%s", err.Error())
	case errors.Is(err, feedback.ErrNotFound):
		return a2a.NotFound("%s", err.Error())
	case errors.Is(err, validation.ErrNoPending):
		return a2a.NotFound("%s", err.Error())
	case errors.Is(err, credentials.ErrNoCredential):
		return a2a.NotFound("signing credential unavailable: %s", err.Error())
	case errors.Is(err, feedback.ErrNotApproved),
		errors.Is(err, feedback.ErrApprovalExpired):
		return a2a.Precondition("%s", err.Error())
	case errors.Is(err, validation.ErrPolicyVeto):
		return a2a.Validation("%s", err.Error())
	case errors.Is(err, assoc.ErrSignerMismatch),
		errors.Is(err, assoc.ErrDigestMismatch):
		return a2a.SignatureMismatch("%s", err.Error())
	default:
		return a2a.Upstream("%s", err.Error())
	}
}

// forbiddenForTenant reports whether a tenant-scoped skill is being
// called for an agent outside the serving tenant.
func forbiddenForTenant(tenantLabel, agent string) bool {
	if tenantLabel == "" || agent == "" {
		return false
	}
	return !strings.EqualFold(tenantLabel, agent) &&
		!strings.EqualFold(tenantLabel, firstLabel(agent))
}

func firstLabel(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
