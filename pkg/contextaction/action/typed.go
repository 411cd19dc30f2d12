package action

import (
	"context"
	"fmt"

	caerrors "github.com/randalmurphal/contextaction/pkg/contextaction/errors"
)

// Action names an action whose payload has type P. Defining actions this
// way lets the compiler check payloads at every Handle and Send site.
//
//	var AddItem = action.Define[Item]("cart/add")
//
//	action.Handle(reg, AddItem, func(ctx context.Context, it Item, ctl *action.Controller) (any, error) {
//	    return cart.Add(it), nil
//	})
//	res := action.Send(ctx, reg, AddItem, Item{SKU: "a1"})
type Action[P any] struct {
	name string
}

// Define declares a typed action.
func Define[P any](name string) Action[P] {
	return Action[P]{name: name}
}

// Name returns the action name.
func (a Action[P]) Name() string { return a.name }

// Handle registers a typed handler for a. If a handler upstream replaces the
// payload with a value of another type, the typed handler fails with a
// ValidationError instead of running.
func Handle[P any](
	r *Register,
	a Action[P],
	fn func(ctx context.Context, payload P, ctl *Controller) (any, error),
	opts ...HandlerOption,
) Unregister {
	return r.On(a.name, func(ctx context.Context, payload any, ctl *Controller) (any, error) {
		typed, ok := payload.(P)
		if !ok && payload != nil {
			return nil, &caerrors.ValidationError{
				Field:   "payload",
				Message: fmt.Sprintf("action %s expects %T, got %T", a.name, typed, payload),
			}
		}
		return fn(ctx, typed, ctl)
	}, opts...)
}

// Send dispatches a typed payload.
func Send[P any](ctx context.Context, r *Register, a Action[P], payload P, opts ...DispatchOption) Result {
	return r.Dispatch(ctx, a.name, payload, opts...)
}
