// Package tenant derives the serving tenant from the request host.
// Resolution always degrades: a host that matches no tenant, or a
// name that fails to resolve on-chain, yields the untenanted default
// rather than an error.
package tenant

import (
	"context"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/registry"
)

// Info identifies the tenant serving a request. The zero value is
// the untenanted default.
type Info struct {
	Label        string
	ProviderName string
	Account      string
}

// IsDefault reports whether the request carries no tenant.
func (i Info) IsDefault() bool {
	return i.Label == ""
}

type ctxKey struct{}

// WithInfo attaches tenant info to the context.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the tenant info, or the untenanted default.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(ctxKey{}).(Info)
	return info
}

// Resolver maps a request host to tenant info.
type Resolver struct {
	baseDomain string
	ensSuffix  string
	names      registry.NameResolver
	logger     zerolog.Logger
}

// NewResolver builds a resolver. names may be nil, in which case
// tenants resolve with an unknown account.
func NewResolver(baseDomain, ensSuffix string, names registry.NameResolver, logger zerolog.Logger) *Resolver {
	return &Resolver{
		baseDomain: strings.ToLower(baseDomain),
		ensSuffix:  ensSuffix,
		names:      names,
		logger:     logger,
	}
}

// Resolve derives the tenant from the host header. The leftmost
// subdomain label under the base domain names the tenant; its
// provider name is the label plus the configured suffix.
func (r *Resolver) Resolve(ctx context.Context, host string) Info {
	label := r.labelFromHost(host)
	if label == "" {
		return Info{}
	}

	info := Info{Label: label, ProviderName: label + r.ensSuffix}
	if r.names == nil {
		return info
	}

	account, err := r.names.ResolveName(ctx, info.ProviderName)
	if err != nil {
		r.logger.Debug().Err(err).Str("name", info.ProviderName).Msg("tenant name resolution failed")
		return info
	}
	info.Account = account.Hex()
	return info
}

func (r *Resolver) labelFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if r.baseDomain == "" || host == r.baseDomain {
		return ""
	}
	rest, ok := strings.CutSuffix(host, "."+r.baseDomain)
	if !ok {
		return ""
	}
	// deepest label wins for nested subdomains
	parts := strings.Split(rest, ".")
	return parts[len(parts)-1]
}
