package payments

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Credentials are the decrypted gateway secrets, passed by value for the
// duration of a single call and never cached.
type Credentials map[string]string

type InitiateRequest struct {
	TransactionID     string
	TransactionNumber string
	Amount            decimal.Decimal
	Currency          string
	Method            Method
	ReturnURL         string
	Metadata          map[string]string
}

type InitiateResult struct {
	Success        bool
	GatewayRef     string
	RequiresAction bool
	RedirectURL    string
	ErrorCode      string
	ErrorMessage   string
}

type RefundCallRequest struct {
	TransactionID     string
	TransactionNumber string
	GatewayRef        string
	RefundNumber      string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
}

type RefundCallResult struct {
	Success      bool
	RefundRef    string
	ErrorCode    string
	ErrorMessage string
}

// Provider is the capability each concrete payment gateway implements. A
// provider-side rejection comes back as a result with Success=false; a
// returned error means the transport itself failed. Providers never mutate
// aggregates, they only return data for the orchestrator to apply.
type Provider interface {
	Name() string
	InitiatePayment(ctx context.Context, creds Credentials, req InitiateRequest) (InitiateResult, error)
}

// Refunder is the optional money-back capability.
type Refunder interface {
	RefundPayment(ctx context.Context, creds Credentials, req RefundCallRequest) (RefundCallResult, error)
}

// HealthChecker is the optional liveness probe.
type HealthChecker interface {
	CheckHealth(ctx context.Context, creds Credentials) error
}

// Registry resolves concrete providers by gateway name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return p, nil
}
