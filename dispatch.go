package xmlrpc

import (
	"context"
	"net/http"
	"sort"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// Dispatcher routes a decoded call to the code handling it.
//
// The result is encoded as the response parameter. A coder.Fault, returned
// either as result or as error, becomes a fault response. Any other error is
// returned to the caller unchanged.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params []interface{}) (interface{}, error)
}

// DispatchFunc is an adapter to allow the use of ordinary functions as
// Dispatcher.
type DispatchFunc func(ctx context.Context, method string, params []interface{}) (interface{}, error)

// Dispatch calls f(ctx, method, params).
func (f DispatchFunc) Dispatch(ctx context.Context, method string, params []interface{}) (interface{}, error) {
	return f(ctx, method, params)
}

// Method represents a XML-RPC method.
type Method interface {
	// Invoke should execute the called method and return the result. The
	// params are passed in call order.
	Invoke(ctx context.Context, params []interface{}) (interface{}, error)
}

// MethodFunc is an adapter to allow the use of ordinary functions as Method.
type MethodFunc func(ctx context.Context, params []interface{}) (interface{}, error)

// Invoke calls f(ctx, params).
func (f MethodFunc) Invoke(ctx context.Context, params []interface{}) (interface{}, error) {
	return f(ctx, params)
}

// Methods maps method names to their implementation. A Methods value must not
// be modified while it is dispatching.
type Methods map[string]Method

// Dispatch invokes the method registered under method. An unknown name, or
// one registered with a nil Method, yields a coder.MethodNotFound fault.
func (m Methods) Dispatch(ctx context.Context, method string, params []interface{}) (interface{}, error) {
	h, ok := m[method]
	if !ok || h == nil {
		return nil, coder.MethodNotFound.WithString(method)
	}
	return h.Invoke(ctx, params)
}

// Names returns the registered method names in sorted order.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for name, h := range m {
		if h != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Single returns a dispatcher invoking m for every call, whatever the method
// name.
func Single(m Method) Dispatcher {
	return DispatchFunc(func(ctx context.Context, _ string, params []interface{}) (interface{}, error) {
		return m.Invoke(ctx, params)
	})
}

// Invoke dispatches req through d exactly once and turns the outcome into a
// response. A fault returned as result or as error is forwarded as the fault
// response; any other error is returned unchanged.
func Invoke(ctx context.Context, d Dispatcher, req *coder.Request) (*coder.Response, error) {
	result, err := d.Dispatch(ctx, req.Method, req.Params)
	if err != nil {
		if f, ok := coder.AsFault(err); ok {
			return &coder.Response{Fault: f}, nil
		}
		return nil, err
	}
	if f, ok := coder.FaultOf(result); ok {
		return &coder.Response{Fault: f}, nil
	}
	return coder.NewResult(result), nil
}

type requestKey struct{}

// RequestFromContext returns the HTTP request that carried the call being
// dispatched, if any.
func RequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	return r, ok
}

func contextWithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}
