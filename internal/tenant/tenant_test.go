package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

type fixedNames struct {
	account common.Address
	err     error
}

func (f fixedNames) ResolveName(_ context.Context, _ string) (common.Address, error) {
	return f.account, f.err
}

func TestResolveSubdomain(t *testing.T) {
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")
	r := NewResolver("trust.example.com", ".agentic-trust.eth", fixedNames{account: account}, zerolog.Nop())

	info := r.Resolve(context.Background(), "helper.trust.example.com:8080")
	if info.Label != "helper" {
		t.Fatalf("expected label helper, got %q", info.Label)
	}
	if info.ProviderName != "helper.agentic-trust.eth" {
		t.Fatalf("unexpected provider name %q", info.ProviderName)
	}
	if info.Account != account.Hex() {
		t.Fatalf("unexpected account %q", info.Account)
	}
}

func TestResolveBareDomainIsDefault(t *testing.T) {
	r := NewResolver("trust.example.com", ".agentic-trust.eth", nil, zerolog.Nop())

	for _, host := range []string{"trust.example.com", "trust.example.com:443", "TRUST.EXAMPLE.COM"} {
		info := r.Resolve(context.Background(), host)
		if !info.IsDefault() {
			t.Fatalf("host %q: expected default tenant, got %+v", host, info)
		}
	}
}

func TestResolveForeignHostIsDefault(t *testing.T) {
	r := NewResolver("trust.example.com", ".agentic-trust.eth", nil, zerolog.Nop())

	info := r.Resolve(context.Background(), "evil.other.com")
	if !info.IsDefault() {
		t.Fatalf("foreign host must degrade to default, got %+v", info)
	}
}

func TestResolveDegradesOnNameFailure(t *testing.T) {
	r := NewResolver("trust.example.com", ".agentic-trust.eth",
		fixedNames{err: errors.New("rpc down")}, zerolog.Nop())

	info := r.Resolve(context.Background(), "helper.trust.example.com")
	if info.Label != "helper" {
		t.Fatalf("label must survive name failure, got %q", info.Label)
	}
	if info.Account != "" {
		t.Fatalf("failed resolution must leave account empty, got %q", info.Account)
	}
}

func TestResolveNestedSubdomain(t *testing.T) {
	r := NewResolver("trust.example.com", ".agentic-trust.eth", nil, zerolog.Nop())

	info := r.Resolve(context.Background(), "extra.helper.trust.example.com")
	if info.Label != "helper" {
		t.Fatalf("deepest label under the base domain wins, got %q", info.Label)
	}
}

func TestContextRoundTrip(t *testing.T) {
	info := Info{Label: "helper", ProviderName: "helper.agentic-trust.eth"}
	ctx := WithInfo(context.Background(), info)

	got := FromContext(ctx)
	if got != info {
		t.Fatalf("expected %+v, got %+v", info, got)
	}
	if !FromContext(context.Background()).IsDefault() {
		t.Fatal("empty context must yield the default tenant")
	}
}
