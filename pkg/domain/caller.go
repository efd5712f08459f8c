package domain

import "context"

type callerKey struct{}

// WithCaller returns a context carrying the caller identifier recorded in audit entries.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller identifier stored by WithCaller, or "".
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)

	return caller
}
