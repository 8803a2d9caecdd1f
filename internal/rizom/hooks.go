package rizom

import "context"

// HookArgs is the context threaded through a document-level hook pipeline.
// Hooks may replace Data (before persistence) or Doc (after persistence) and
// must return the args; the orchestrator always continues with the returned
// value.
type HookArgs struct {
	Data      Document
	Doc       Document
	Type      *CompiledType
	Operation string // "create", "update", "delete"
	Locale    string
	User      *User
	// API re-enters the orchestration layer; calls made here count against
	// the operation-depth guard.
	API API
}

// Hook is one stage of a document hook pipeline.
type Hook func(ctx context.Context, args HookArgs) (HookArgs, error)

// Hooks collects the per-type pipelines, run in declaration order.
type Hooks struct {
	BeforeCreate []Hook
	AfterCreate  []Hook
	BeforeUpdate []Hook
	AfterUpdate  []Hook
	BeforeRead   []Hook
	BeforeDelete []Hook
	AfterDelete  []Hook
}

// RunHooks executes a pipeline, wrapping the first failure in a HookError.
func RunHooks(ctx context.Context, name string, pipeline []Hook, args HookArgs) (HookArgs, error) {
	for _, h := range pipeline {
		next, err := h(ctx, args)
		if err != nil {
			id := ""
			if args.Doc != nil {
				id, _ = args.Doc[MetaID].(string)
			}
			return args, &HookError{Hook: name, Slug: args.Type.Slug, ID: id, Err: err}
		}
		args = next
	}
	return args, nil
}

// operationDepthKey carries the reentrancy counter across nested operations.
type operationDepthKey struct{}

// MaxOperationDepth bounds hook-driven reentrancy into the orchestrators.
const MaxOperationDepth = 10

// EnterOperation increments the operation depth on the context, failing with
// ErrTooManyOperations when a hook chain recurses without terminating.
func EnterOperation(ctx context.Context) (context.Context, error) {
	depth, _ := ctx.Value(operationDepthKey{}).(int)
	if depth >= MaxOperationDepth {
		return ctx, ErrTooManyOperations
	}
	return context.WithValue(ctx, operationDepthKey{}, depth+1), nil
}
