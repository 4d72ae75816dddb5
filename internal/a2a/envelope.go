package a2a

import (
	"encoding/json"
	"net/http"
)

// JSON-RPC 2.0 error codes used by the RPC envelope.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcApplication    = -32000
)

// Challenge is the optional caller authentication object. The
// signature covers skillId|nonce|timestamp and must recover to
// Address.
type Challenge struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// Request is the envelope-agnostic form every handler sees. The
// dispatcher fills it from either a flat object or a JSON-RPC call.
type Request struct {
	SkillID  string         `json:"skillId"`
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Auth     *Challenge     `json:"auth,omitempty"`

	rpc   bool
	rpcID json.RawMessage
}

// IsRPC reports whether the request arrived as JSON-RPC 2.0.
func (r *Request) IsRPC() bool { return r.rpc }

// Result is what a handler returns on success. Warnings carry
// best-effort side effects that failed without failing the operation.
type Result struct {
	Status   int
	Body     map[string]any
	Warnings []string
}

// OK builds a 200 result.
func OK(body map[string]any) *Result {
	return &Result{Status: http.StatusOK, Body: body}
}

// Created builds a 201 result.
func Created(body map[string]any) *Result {
	return &Result{Status: http.StatusCreated, Body: body}
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// parseEnvelope detects the envelope by the presence of
// jsonrpc:"2.0". In RPC mode the method is the skill id and the
// payload is params.payload, or params itself when no payload key is
// present.
func parseEnvelope(body []byte) (*Request, *Error) {
	var probe struct {
		JSONRPC string `json:"jsonrpc"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, Validation("invalid JSON body")
	}

	if probe.JSONRPC != "2.0" {
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, Validation("invalid request envelope")
		}
		return &req, nil
	}

	var env rpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, Validation("invalid JSON-RPC envelope")
	}
	req := &Request{SkillID: env.Method, rpc: true, rpcID: env.ID}
	if len(env.Params) == 0 {
		return req, nil
	}

	var params struct {
		Payload  map[string]any `json:"payload"`
		Metadata map[string]any `json:"metadata"`
		Auth     *Challenge     `json:"auth"`
	}
	if err := json.Unmarshal(env.Params, &params); err == nil && params.Payload != nil {
		req.Payload = params.Payload
		req.Metadata = params.Metadata
		req.Auth = params.Auth
		return req, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(env.Params, &flat); err != nil {
		return nil, Validation("JSON-RPC params must be an object")
	}
	req.Payload = flat
	return req, nil
}

// writeResult is the single boundary translation from a handler
// outcome back into the caller's chosen envelope. It is a pure
// mapping: handlers never see the response writer.
func writeResult(w http.ResponseWriter, req *Request, res *Result) {
	body := map[string]any{"skillId": req.SkillID, "status": "ok"}
	for k, v := range res.Body {
		body[k] = v
	}
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}

	if req.IsRPC() {
		writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.rpcID, Result: body})
		return
	}
	writeJSON(w, res.Status, body)
}

// writeError maps a taxonomy error into the caller's envelope. The
// response always carries the requested skill id and a human-readable
// message so multi-step client flows can correlate.
func writeError(w http.ResponseWriter, req *Request, e *Error) {
	if req.IsRPC() {
		code := rpcApplication
		if e.Kind == KindMethodNotFound {
			code = rpcMethodNotFound
		}
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.rpcID,
			Error: &rpcError{
				Code:    code,
				Message: string(e.Kind),
				Data: map[string]any{
					"skillId": req.SkillID,
					"status":  e.Status,
					"message": e.Message,
				},
			},
		})
		return
	}
	writeJSON(w, e.Status, map[string]any{
		"skillId": req.SkillID,
		"status":  "error",
		"kind":    string(e.Kind),
		"error":   e.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
