package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testDispatcher(verifier ChallengeVerifier) *Dispatcher {
	d := NewDispatcher(zerolog.Nop(), verifier)
	d.Register("echo/say", func(_ context.Context, req *Request) (*Result, error) {
		return OK(map[string]any{"echo": req.Payload["msg"]}), nil
	})
	d.Register("echo/fail", func(_ context.Context, _ *Request) (*Result, error) {
		return nil, NotFound("nothing here")
	})
	d.Register("echo/boom", func(_ context.Context, _ *Request) (*Result, error) {
		return nil, errors.New("disk on fire")
	})
	return d
}

func post(t *testing.T, d *Dispatcher, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a", strings.NewReader(body))
	rr := httptest.NewRecorder()
	d.ServeHTTP(rr, req)

	var decoded map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rr.Body.String())
	}
	return rr, decoded
}

func TestFlatEnvelopeSuccess(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"skillId":"echo/say","payload":{"msg":"hi"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["status"] != "ok" || body["skillId"] != "echo/say" || body["echo"] != "hi" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRPCEnvelopeSuccess(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"jsonrpc":"2.0","id":7,"method":"echo/say","params":{"payload":{"msg":"hi"}}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result: %v", body)
	}
	if result["echo"] != "hi" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestRPCParamsWithoutPayloadKey(t *testing.T) {
	d := testDispatcher(nil)
	_, body := post(t, d, `{"jsonrpc":"2.0","id":1,"method":"echo/say","params":{"msg":"direct"}}`)

	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result: %v", body)
	}
	if result["echo"] != "direct" {
		t.Fatalf("params should be used as the payload when no payload key is present: %v", result)
	}
}

func TestUnknownSkillFlat(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"skillId":"no/such","payload":{}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("flat unknown skill must answer 200, got %d", rr.Code)
	}
	if body["status"] != "not_implemented" {
		t.Fatalf("expected not_implemented, got %v", body["status"])
	}
	if body["skillId"] != "no/such" {
		t.Fatalf("response must echo the requested skill id, got %v", body["skillId"])
	}
}

func TestUnknownSkillRPC(t *testing.T) {
	d := testDispatcher(nil)
	_, body := post(t, d, `{"jsonrpc":"2.0","id":1,"method":"no/such","params":{}}`)

	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected RPC error, got %v", body)
	}
	if int(errObj["code"].(float64)) != -32601 {
		t.Fatalf("unknown RPC method must be -32601, got %v", errObj["code"])
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"skillId":"echo/fail","payload":{}}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body["kind"] != "not_found" || body["status"] != "error" {
		t.Fatalf("unexpected error shape: %v", body)
	}
	if body["skillId"] != "echo/fail" {
		t.Fatal("error response must carry the requested skill id")
	}
}

func TestOpaqueErrorBecomesUpstream(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"skillId":"echo/boom","payload":{}}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if body["kind"] != "upstream_unavailable" {
		t.Fatalf("expected upstream_unavailable, got %v", body["kind"])
	}
}

func TestMissingSkillID(t *testing.T) {
	d := testDispatcher(nil)
	rr, body := post(t, d, `{"payload":{}}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body["kind"] != "validation" {
		t.Fatalf("expected validation, got %v", body["kind"])
	}
}

type rejectAll struct{}

func (rejectAll) Verify(_ context.Context, _ *Challenge, _ string) error {
	return errors.New("bad signature")
}

func TestAuthFailureShortCircuits(t *testing.T) {
	d := testDispatcher(rejectAll{})
	rr, body := post(t, d, `{"skillId":"echo/say","payload":{"msg":"hi"},"auth":{"address":"0x1","nonce":"n","timestamp":1,"signature":"0x2"}}`)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if body["kind"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %v", body["kind"])
	}
}

func TestAuthWithoutVerifierRejected(t *testing.T) {
	d := testDispatcher(nil)
	rr, _ := post(t, d, `{"skillId":"echo/say","payload":{},"auth":{"address":"0x1","nonce":"n","timestamp":1,"signature":"0x2"}}`)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWarningsSurface(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)
	d.Register("warn/me", func(_ context.Context, _ *Request) (*Result, error) {
		res := OK(map[string]any{"done": true})
		res.Warnings = []string{"side effect failed"}
		return res, nil
	})

	_, body := post(t, d, `{"skillId":"warn/me","payload":{}}`)
	warnings, ok := body["warnings"].([]any)
	if !ok || len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", body["warnings"])
	}
}
