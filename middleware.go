package xmlrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// Middleware wraps a Dispatcher with additional behavior.
type Middleware func(next Dispatcher) Dispatcher

// Chain composes middlewares so that Chain(a, b, c)(d) is a(b(c(d))): a sees
// the call first and the result last.
func Chain(mws ...Middleware) Middleware {
	return func(next Dispatcher) Dispatcher {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration and outcome.
func Logging(log *zap.Logger) Middleware {
	return func(next Dispatcher) Dispatcher {
		return DispatchFunc(func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
			start := time.Now()
			result, err := next.Dispatch(ctx, method, params)

			fields := []zap.Field{
				zap.String("request_id", uuid.NewString()),
				zap.String("method", method),
				zap.Int("params", len(params)),
				zap.Duration("duration", time.Since(start)),
			}
			if r, ok := RequestFromContext(ctx); ok {
				fields = append(fields, zap.String("remote_addr", r.RemoteAddr))
			}

			f, isFault := coder.FaultOf(result)
			if !isFault && err != nil {
				f, isFault = coder.AsFault(err)
			}
			switch {
			case isFault:
				log.Info("xmlrpc call faulted", append(fields, zap.Int("fault_code", f.Code), zap.String("fault_string", f.String))...)
			case err != nil:
				log.Error("xmlrpc call failed", append(fields, zap.Error(err))...)
			default:
				log.Info("xmlrpc call", fields...)
			}
			return result, err
		})
	}
}

// RateLimit rejects calls beyond r per second, with bursts of up to burst
// calls, with a coder.SystemError fault.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next Dispatcher) Dispatcher {
		return DispatchFunc(func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
			if !limiter.Allow() {
				return nil, coder.SystemError.WithString("rate limit exceeded")
			}
			return next.Dispatch(ctx, method, params)
		})
	}
}

// Timeout bounds the duration of a call. When d elapses the call returns an
// error wrapping context.DeadlineExceeded; the method keeps running until it
// observes its context. A panic in the method is raised again in the calling
// goroutine, where Recover can handle it.
func Timeout(d time.Duration) Middleware {
	type outcome struct {
		result   interface{}
		err      error
		panicked interface{}
	}

	return func(next Dispatcher) Dispatcher {
		return DispatchFunc(func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan outcome, 1)
			go func() {
				defer func() {
					if v := recover(); v != nil {
						done <- outcome{panicked: v}
					}
				}()
				result, err := next.Dispatch(ctx, method, params)
				done <- outcome{result: result, err: err}
			}()

			select {
			case o := <-done:
				if o.panicked != nil {
					panic(o.panicked)
				}
				return o.result, o.err
			case <-ctx.Done():
				return nil, fmt.Errorf("xmlrpc: method %s: %w", method, ctx.Err())
			}
		})
	}
}

// Recover turns a panic in a method into an error.
func Recover(log *zap.Logger) Middleware {
	return func(next Dispatcher) Dispatcher {
		return DispatchFunc(func(ctx context.Context, method string, params []interface{}) (result interface{}, err error) {
			defer func() {
				if v := recover(); v != nil {
					log.Error("xmlrpc method panicked", zap.String("method", method), zap.Any("panic", v), zap.Stack("stack"))
					result, err = nil, fmt.Errorf("xmlrpc: method %s panicked: %v", method, v)
				}
			}()
			return next.Dispatch(ctx, method, params)
		})
	}
}
