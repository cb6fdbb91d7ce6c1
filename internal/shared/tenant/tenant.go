package tenant

import "context"

type ctxKey struct{}

// WithID stores the current tenant id on the context. Authentication is
// handled upstream; by the time a request reaches the payment core the tenant
// id is trusted.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
