package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ignatzorin/freelance-payments/internal/logger"
)

// SafeGo запускает горутину с обработкой panic.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("goroutine: panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// Guard оборачивает фоновую задачу для errgroup: panic превращается в ошибку.
func Guard(ctx context.Context, name string, fn func(context.Context) error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("goroutine: panic in %s: %v\n%s", name, r, debug.Stack())
				err = fmt.Errorf("goroutine: panic in %s: %v", name, r)
			}
		}()
		return fn(ctx)
	}
}
