package skills

import (
	"context"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
)

func (d Deps) statsTrends(ctx context.Context, req *a2a.Request) (*a2a.Result, error) {
	force := optBool(req.Payload, "force")

	snap, cached, err := d.Trends.Get(ctx, force)
	if err != nil {
		return nil, mapError(err)
	}
	return a2a.OK(map[string]any{
		"trends": snap,
		"cached": cached,
	}), nil
}

func (d Deps) agentPing(ctx context.Context, _ *a2a.Request) (*a2a.Result, error) {
	info := tenant.FromContext(ctx)
	body := map[string]any{
		"pong": true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if !info.IsDefault() {
		body["tenant"] = info.Label
		body["provider"] = info.ProviderName
		if info.Account != "" {
			body["account"] = info.Account
		}
	}
	return a2a.OK(body), nil
}
