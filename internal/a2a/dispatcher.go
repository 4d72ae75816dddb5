package a2a

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
)

// maxBodySize bounds inbound envelopes. Payloads are flat key/value
// objects; anything near this limit is abuse, not a real skill call.
const maxBodySize = 64 * 1024

// Handler is the common shape every skill implements. Returning an
// *Error classifies the failure; any other error is mapped to
// upstream_unavailable.
type Handler func(ctx context.Context, req *Request) (*Result, error)

// ChallengeVerifier checks the optional caller authentication object
// before routing.
type ChallengeVerifier interface {
	Verify(ctx context.Context, c *Challenge, skillID string) error
}

// Dispatcher routes inbound envelopes to registered skill handlers
// and normalizes every outcome back into the caller's envelope.
type Dispatcher struct {
	handlers map[string]Handler
	verifier ChallengeVerifier
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher. verifier may be nil, in which
// case requests carrying an auth challenge are rejected.
func NewDispatcher(logger zerolog.Logger, verifier ChallengeVerifier) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		verifier: verifier,
		logger:   logger,
	}
}

// Register binds a skill id to its handler. Last registration wins.
func (d *Dispatcher) Register(skillID string, h Handler) {
	d.handlers[skillID] = h
}

// Skills returns the registered skill ids, for the discovery card.
func (d *Dispatcher) Skills() []string {
	out := make([]string, 0, len(d.handlers))
	for id := range d.handlers {
		out = append(out, id)
	}
	return out
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, &Request{}, Validation("failed to read request body"))
		return
	}

	req, perr := parseEnvelope(body)
	if perr != nil {
		if req == nil {
			req = &Request{}
		}
		writeError(w, req, perr)
		return
	}

	res, herr := d.dispatch(r.Context(), req)
	if herr != nil {
		d.logger.Warn().
			Str("skill", req.SkillID).
			Str("kind", string(herr.Kind)).
			Str("error", herr.Message).
			Msg("skill failed")
		metrics.SkillRequests.WithLabelValues(req.SkillID, string(herr.Kind)).Inc()
		writeError(w, req, herr)
		return
	}
	metrics.SkillRequests.WithLabelValues(req.SkillID, "ok").Inc()
	writeResult(w, req, res)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (*Result, *Error) {
	if req.SkillID == "" {
		return nil, Validation("skillId is required")
	}

	// Authentication short-circuits routing entirely on failure.
	if req.Auth != nil {
		if d.verifier == nil {
			return nil, Unauthenticated("challenge verification is not configured")
		}
		if err := d.verifier.Verify(ctx, req.Auth, req.SkillID); err != nil {
			metrics.AuthFailures.Inc()
			return nil, Unauthenticated("challenge verification failed: %v", err)
		}
	}

	h, ok := d.handlers[req.SkillID]
	if !ok {
		return d.unknownSkill(req)
	}

	res, err := h(ctx, req)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, Upstream("%s failed: %v", req.SkillID, err)
	}
	if res == nil {
		res = OK(nil)
	}
	return res, nil
}

// unknownSkill is the single policy point for unrecognized skill ids:
// the flat envelope echoes a not-implemented payload, RPC mode gets a
// strict method-not-found error.
func (d *Dispatcher) unknownSkill(req *Request) (*Result, *Error) {
	if req.IsRPC() {
		return nil, &Error{
			Status:  http.StatusNotFound,
			Kind:    KindMethodNotFound,
			Message: "method not found: " + req.SkillID,
		}
	}
	return OK(map[string]any{
		"status":  "not_implemented",
		"message": "skill " + req.SkillID + " is not yet implemented",
	}), nil
}
