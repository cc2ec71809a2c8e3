package shared

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// ContextWithOperator stores the authenticated operator id in the context.
func ContextWithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey, operatorID)
}

// OperatorFromContext returns the operator id, or "" when unauthenticated.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey).(string); ok {
		return v
	}
	return ""
}
