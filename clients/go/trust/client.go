// Package trust provides a client for the agentic trust dispatcher:
// skill calls over the flat or JSON-RPC envelope, plus client-side
// association signing and verification.
package trust

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the dispatcher's skill endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// UseRPC selects the JSON-RPC 2.0 envelope instead of the flat
	// one.
	UseRPC bool

	// Signer, when set, attaches a signed challenge to every call.
	Signer ChallengeSigner

	rpcSeq int64
}

// ChallengeSigner produces the challenge signature over
// skillId|nonce|timestamp with the EIP-191 personal prefix.
type ChallengeSigner interface {
	Address() string
	SignChallenge(payload []byte) ([]byte, error)
}

// NewClient creates a dispatcher client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type challenge struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// CallResult is the decoded skill response.
type CallResult struct {
	SkillID  string
	Status   string
	Kind     string
	Message  string
	Warnings []string
	Body     map[string]any
}

// Err converts an error-status result into a Go error.
func (r *CallResult) Err() error {
	if r.Status == "error" {
		return fmt.Errorf("skill %s failed (%s): %s", r.SkillID, r.Kind, r.Message)
	}
	return nil
}

// Call invokes a skill with the given payload.
func (c *Client) Call(ctx context.Context, skillID string, payload map[string]any) (*CallResult, error) {
	var auth *challenge
	if c.Signer != nil {
		signed, err := c.signChallenge(skillID)
		if err != nil {
			return nil, fmt.Errorf("sign challenge: %w", err)
		}
		auth = signed
	}

	var body any
	if c.UseRPC {
		c.rpcSeq++
		params := map[string]any{"payload": payload}
		if auth != nil {
			params["auth"] = auth
		}
		body = map[string]any{
			"jsonrpc": "2.0",
			"id":      c.rpcSeq,
			"method":  skillID,
			"params":  params,
		}
	} else {
		flat := map[string]any{"skillId": skillID, "payload": payload}
		if auth != nil {
			flat["auth"] = auth
		}
		body = flat
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/a2a", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if c.UseRPC {
		return decodeRPC(resp)
	}
	return decodeFlat(resp)
}

func (c *Client) signChallenge(skillID string) (*challenge, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, err
	}
	nonce := hex.EncodeToString(nonceBytes)
	ts := time.Now().UnixMilli()

	payload := fmt.Sprintf("%s|%s|%d", skillID, nonce, ts)
	sig, err := c.Signer.SignChallenge([]byte(payload))
	if err != nil {
		return nil, err
	}
	return &challenge{
		Address:   c.Signer.Address(),
		Nonce:     nonce,
		Timestamp: ts,
		Signature: "0x" + hex.EncodeToString(sig),
	}, nil
}

func decodeFlat(resp *http.Response) (*CallResult, error) {
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resultFromBody(body), nil
}

func decodeRPC(resp *http.Response) (*CallResult, error) {
	var env struct {
		Result map[string]any `json:"result"`
		Error  *struct {
			Code    int            `json:"code"`
			Message string         `json:"message"`
			Data    map[string]any `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		res := &CallResult{Status: "error", Kind: env.Error.Message}
		if env.Error.Data != nil {
			res.SkillID, _ = env.Error.Data["skillId"].(string)
			res.Message, _ = env.Error.Data["message"].(string)
		}
		return res, nil
	}
	return resultFromBody(env.Result), nil
}

func resultFromBody(body map[string]any) *CallResult {
	res := &CallResult{Body: body}
	res.SkillID, _ = body["skillId"].(string)
	res.Status, _ = body["status"].(string)
	res.Kind, _ = body["kind"].(string)
	res.Message, _ = body["error"].(string)
	if raw, ok := body["warnings"].([]any); ok {
		for _, w := range raw {
			if s, ok := w.(string); ok {
				res.Warnings = append(res.Warnings, s)
			}
		}
	}
	return res
}
