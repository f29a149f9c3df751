package main

import (
	"context"
	"time"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// examples is the service served under the "examples" prefix.
type examples struct {
	now func() time.Time
}

// Echo returns its argument unchanged.
func (examples) Echo(_ context.Context, v interface{}) (interface{}, error) { return v, nil }

// Add returns the sum of its arguments.
func (examples) Add(_ context.Context, xs ...int) (int, error) {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return sum, nil
}

// Now returns the server time.
func (e examples) Now(context.Context) (time.Time, error) { return e.now().UTC(), nil }

// Fail always reports a fault with the given code and message.
func (examples) Fail(_ context.Context, code int, msg string) (interface{}, error) {
	return nil, coder.Fault{Code: code, String: msg}
}
