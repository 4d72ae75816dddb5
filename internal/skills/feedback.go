package skills

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/feedback"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
)

func feedbackJSON(fr *models.FeedbackRequest) map[string]any {
	out := map[string]any{
		"id":            fr.ID.String(),
		"clientAddress": fr.ClientAddress,
		"fromAgent":     fr.FromAgent,
		"toAgent":       fr.ToAgent,
		"comment":       fr.Comment,
		"requestStatus": fr.Status,
		"approved":      fr.Approved,
		"createdAt":     fr.CreatedAt.Format(time.RFC3339),
		"updatedAt":     fr.UpdatedAt.Format(time.RFC3339),
	}
	if fr.ApprovedAt != nil {
		out["approvedAt"] = fr.ApprovedAt.Format(time.RFC3339)
		out["approvedForDays"] = fr.ApprovedForDays
	}
	if len(fr.AuthBlob) > 0 {
		out["feedbackAuth"] = json.RawMessage(fr.AuthBlob)
	}
	if fr.TxHash != "" {
		out["txHash"] = fr.TxHash
	}
	return out
}

func (d Deps) feedbackRequest(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	clientAddress, aerr := stringField(req.Payload, "clientAddress")
	if aerr != nil {
		return nil, aerr
	}
	toAgent, aerr := stringField(req.Payload, "agent")
	if aerr != nil {
		return nil, aerr
	}
	comment, aerr := stringField(req.Payload, "comment")
	if aerr != nil {
		return nil, aerr
	}

	fr, warnings, err := d.Feedback.Create(ctx, feedback.CreateInput{
		ClientAddress: clientAddress,
		FromAgent:     optString(req.Payload, "fromAgent"),
		ToAgent:       toAgent,
		Comment:       comment,
	})
	if err != nil {
		return nil, mapError(err)
	}
	res := a2a.Created(map[string]any{"request": feedbackJSON(fr)})
	res.Warnings = warnings
	return res, nil
}

func (d Deps) feedbackApprove(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	id, aerr := uuidField(req.Payload, "id")
	if aerr != nil {
		return nil, aerr
	}
	toAgent, aerr := stringField(req.Payload, "toAgent")
	if aerr != nil {
		return nil, aerr
	}
	days, aerr := intField(req.Payload, "approvedForDays")
	if aerr != nil {
		return nil, aerr
	}

	if info := tenant.FromContext(ctx); forbiddenForTenant(info.Label, toAgent) {
		return nil, a2a.Forbidden("agent %q is not served by this tenant", toAgent)
	}

	fr, warnings, err := d.Feedback.Approve(ctx, id, optString(req.Payload, "fromAgent"), toAgent, days)
	if err != nil {
		return nil, mapError(err)
	}
	res := a2a.OK(map[string]any{"request": feedbackJSON(fr)})
	res.Warnings = warnings
	return res, nil
}

func (d Deps) feedbackIssueAuth(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	id, aerr := uuidField(req.Payload, "id")
	if aerr != nil {
		return nil, aerr
	}

	if info := tenant.FromContext(ctx); !info.IsDefault() {
		existing, err := d.DB.GetFeedbackRequest(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		if existing != nil && forbiddenForTenant(info.Label, existing.ToAgent) {
			return nil, a2a.Forbidden("agent %q is not served by this tenant", existing.ToAgent)
		}
	}

	fr, warnings, err := d.Feedback.IssueAuthorization(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	res := a2a.OK(map[string]any{
		"request":      feedbackJSON(fr),
		"feedbackAuth": json.RawMessage(fr.AuthBlob),
	})
	res.Warnings = warnings
	return res, nil
}

func (d Deps) feedbackMarkGiven(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	id, aerr := uuidField(req.Payload, "id")
	if aerr != nil {
		return nil, aerr
	}
	txHash, aerr := stringField(req.Payload, "txHash")
	if aerr != nil {
		return nil, aerr
	}

	fr, err := d.Feedback.MarkGiven(ctx, id, txHash)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"request": feedbackJSON(fr)}), nil
}

func (d Deps) feedbackListByClient(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	clientAddress, aerr := stringField(req.Payload, "clientAddress")
	if aerr != nil {
		return nil, aerr
	}

	list, err := d.Feedback.ListByClient(ctx, clientAddress)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"requests": feedbackListJSON(list)}), nil
}

func (d Deps) feedbackListByAgent(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	agent, aerr := stringField(req.Payload, "agent")
	if aerr != nil {
		return nil, aerr
	}

	list, err := d.Feedback.ListByAgent(ctx, agent)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"requests": feedbackListJSON(list)}), nil
}

func feedbackListJSON(list []models.FeedbackRequest) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, feedbackJSON(&list[i]))
	}
	return out
}
