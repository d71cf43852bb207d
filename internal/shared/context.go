package shared

import "context"

type operatorContextKey struct{}

// Operator identifies the logged-in counter user on whose behalf a
// request runs. The gateway in front of this service authenticates and
// forwards the identity headers.
type Operator struct {
	ID   int64
	Name string
}

// ContextWithOperator stores the operator in context.
func ContextWithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// OperatorFromContext extracts the operator from context.
func OperatorFromContext(ctx context.Context) Operator {
	op, _ := ctx.Value(operatorContextKey{}).(Operator)
	return op
}
