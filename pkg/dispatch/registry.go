// Package dispatch routes link frames to the handlers registered for their
// address byte.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnroutable is returned by Dispatch when no handler is registered for the
// frame's address.
var ErrUnroutable = errors.New("dispatch: no handlers registered for address")

// Handler processes one frame payload. The payload is shared by all handlers
// of the frame and must not be modified.
type Handler func(ctx context.Context, payload []byte) error

// Registry maps address bytes to handlers. Register everything before the
// link starts; Dispatch may then be called from any number of goroutines.
type Registry struct {
	handlers map[byte][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[byte][]Handler)}
}

// Register appends h to the handlers of address. Registering the same handler
// twice makes it run twice per frame.
func (r *Registry) Register(address byte, h Handler) {
	r.handlers[address] = append(r.handlers[address], h)
}

// Handlers returns the handlers registered for address, in registration order.
func (r *Registry) Handlers(address byte) []Handler {
	return r.handlers[address]
}

// Addresses returns the number of addresses with at least one handler.
func (r *Registry) Addresses() int {
	return len(r.handlers)
}

// Dispatch runs every handler of address concurrently with payload and waits
// for all of them. A failing or panicking handler does not affect the others;
// their errors are joined in registration order.
func (r *Registry) Dispatch(ctx context.Context, address byte, payload []byte) error {
	handlers := r.handlers[address]
	if len(handlers) == 0 {
		return fmt.Errorf("%w 0x%02X", ErrUnroutable, address)
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = invoke(ctx, h, payload)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("handler %d for 0x%02X: %w", i, address, errs[i])
			}
		}(i, h)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func invoke(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(ctx, payload)
}
