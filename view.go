package xmlrpc

// View returns a handler serving a single XML-RPC endpoint: every call is
// passed to m regardless of its method name.
func View(m Method, opts ...Option) *Server {
	return NewHandler(Single(m), opts...)
}

// ViewFunc is like View for a function shaped like
//
//	func(ctx context.Context, args...) (T, error)
//
// It panics if fn has another shape.
func ViewFunc(fn interface{}, opts ...Option) *Server {
	return View(MustFunc(fn), opts...)
}
