package skills

import (
	"context"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/validation"
)

func (d Deps) validationRespond(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	agent := optString(req.Payload, "agent")
	info := tenant.FromContext(ctx)
	if agent == "" {
		agent = info.Label
	}
	if agent == "" {
		return nil, a2a.Validation("agent is required")
	}
	if forbiddenForTenant(info.Label, agent) {
		return nil, a2a.Forbidden("agent %q is not served by this tenant", agent)
	}

	score, aerr := intField(req.Payload, "score")
	if aerr != nil {
		return nil, aerr
	}

	var metadata map[string]any
	if m, ok := req.Payload["metadata"].(map[string]any); ok {
		metadata = m
	}

	receipt, err := d.Validation.Respond(ctx, validation.RespondInput{
		AgentName:   agent,
		RequestID:   optString(req.Payload, "requestId"),
		Score:       int(score),
		EvidenceURI: optString(req.Payload, "evidenceUri"),
		Tag:         optString(req.Payload, "tag"),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"receipt": receipt}), nil
}
