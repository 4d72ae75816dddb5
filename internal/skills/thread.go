package skills

import (
	"context"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

func messageJSON(m *models.Message) map[string]any {
	out := map[string]any{
		"id":        m.ID,
		"type":      m.Type,
		"from":      m.From,
		"to":        m.To,
		"subject":   m.Subject,
		"body":      m.Body,
		"read":      m.Read,
		"createdAt": m.CreatedAt.Format(time.RFC3339),
	}
	if m.TaskID != nil {
		out["taskId"] = *m.TaskID
	}
	if m.ContextType != "" {
		out["contextType"] = m.ContextType
		out["contextId"] = m.ContextID
	}
	return out
}

func messageListJSON(list []models.Message) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, messageJSON(&list[i]))
	}
	return out
}

func (d Deps) threadSend(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	from, aerr := stringField(req.Payload, "from")
	if aerr != nil {
		return nil, aerr
	}
	to, aerr := stringField(req.Payload, "to")
	if aerr != nil {
		return nil, aerr
	}
	body, aerr := stringField(req.Payload, "body")
	if aerr != nil {
		return nil, aerr
	}

	msg := &models.Message{
		Type:        optString(req.Payload, "type"),
		From:        from,
		To:          to,
		Subject:     optString(req.Payload, "subject"),
		Body:        body,
		ContextType: optString(req.Payload, "contextType"),
		ContextID:   optString(req.Payload, "contextId"),
	}
	if msg.Type == "" {
		msg.Type = "message"
	}

	if taskID := optString(req.Payload, "taskId"); taskID != "" {
		task := &models.Task{
			ID:            taskID,
			Type:          optString(req.Payload, "taskType"),
			Status:        "open",
			Subject:       msg.Subject,
			ClientAddress: from,
			AgentName:     to,
		}
		if task.Type == "" {
			task.Type = "thread"
		}
		if err := d.DB.UpsertTask(ctx, task); err != nil {
			return nil, mapError(err)
		}
		msg.TaskID = &taskID
	}

	if err := d.DB.AppendMessage(ctx, msg); err != nil {
		return nil, mapError(err)
	}
	metrics.MessagesSent.WithLabelValues(msg.Type).Inc()
	return a2a.Created(map[string]any{"message": messageJSON(msg)}), nil
}

func (d Deps) threadListByClient(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	clientAddress, aerr := stringField(req.Payload, "clientAddress")
	if aerr != nil {
		return nil, aerr
	}

	list, err := d.DB.ListMessagesForClient(ctx, clientAddress)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"messages": messageListJSON(list)}), nil
}

func (d Deps) threadListByAgent(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	agent, aerr := stringField(req.Payload, "agent")
	if aerr != nil {
		return nil, aerr
	}

	list, err := d.DB.ListMessagesForAgent(ctx, agent)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{"messages": messageListJSON(list)}), nil
}

func (d Deps) threadMarkRead(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	id, aerr := stringField(req.Payload, "messageId")
	if aerr != nil {
		return nil, aerr
	}

	found, err := d.DB.MarkMessageRead(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if !found {
		return nil, a2a.NotFound("message %q not found", id)
	}
	return a2a.OK(map[string]any{"messageId": id, "read": true}), nil
}
