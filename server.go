package xmlrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// Server implements a XML-RPC HTTP handler.
type Server struct {
	methods    Methods
	dispatcher Dispatcher
	opts       coder.Options
	maxBody    int64
	log        *zap.Logger
	mws        []Middleware
	onError    ErrorHandler

	once    sync.Once
	handler Dispatcher
}

// Option configures a Server.
type Option func(s *Server)

// WithCodecOptions sets the codec options used for the requests and responses
// of the server.
func WithCodecOptions(opts coder.Options) Option {
	return func(s *Server) { s.opts = opts }
}

// WithMaxBodySize sets the largest accepted request body. The default is
// DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithLogger sets the logger of the server.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMiddleware appends middlewares around the dispatcher. The first one
// sees calls first.
func WithMiddleware(mws ...Middleware) Option {
	return func(s *Server) { s.mws = append(s.mws, mws...) }
}

// WithErrorHandler sets the handler for errors that aren't faults.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Server) { s.onError = h }
}

// NewServer returns an initialized handler dispatching calls by method name.
func NewServer(opts ...Option) *Server {
	s := newServer(opts)
	s.methods = make(Methods)
	s.dispatcher = s.methods
	return s
}

// NewHandler returns a handler dispatching every call to d.
func NewHandler(d Dispatcher, opts ...Option) *Server {
	s := newServer(opts)
	s.dispatcher = d
	return s
}

func newServer(opts []Option) *Server {
	s := &Server{
		maxBody: DefaultMaxBodySize,
		log:     zap.NewNop(),
		onError: DefaultErrorHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register registers a XML-RPC method for the given name. It's considered a
// programmer error to register a method after the HTTP server is serving
// requests, or on a server created by NewHandler.
func (s *Server) Register(name string, m Method) {
	if s.methods == nil {
		panic("xmlrpc: Register on a server with a custom dispatcher")
	}
	s.methods[name] = m
}

// RegisterReceiver registers the methods of rcvr, see Receiver.
func (s *Server) RegisterReceiver(prefix string, rcvr interface{}) error {
	ms, err := Receiver(prefix, rcvr)
	if err != nil {
		return err
	}
	for name, m := range ms {
		s.Register(name, m)
	}
	return nil
}

// Methods returns the names of the registered methods.
func (s *Server) Methods() []string { return s.methods.Names() }

func (s *Server) dispatch() Dispatcher {
	s.once.Do(func() {
		s.handler = Chain(s.mws...)(s.dispatcher)
	})
	return s.handler
}

// Call runs one exchange outside of HTTP: the declared length n is checked,
// body is read and decoded, the call is dispatched and the response encoded.
// Faults produce a Reply; every other failure is returned as error.
func (s *Server) Call(ctx context.Context, n int64, body io.Reader) (*Reply, error) {
	data, err := ReadLimited(body, n, s.maxBody)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &coder.MalformedRequestError{Msg: "empty body"}
	}

	req, err := Unmarshal(data, s.opts)
	if err != nil {
		return nil, err
	}

	resp, err := Invoke(ctx, s.dispatch(), req)
	if err != nil {
		return nil, err
	}
	if resp.Fault != nil {
		return NewReply(*resp.Fault, s.opts)
	}
	return NewReply(resp.Result, s.opts)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !supportedMediaType(ct) {
		msg := fmt.Sprintf("media type %q is not supported", ct)
		http.Error(w, msg, http.StatusUnsupportedMediaType)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeFault(w, http.StatusMethodNotAllowed, coder.ParseError.WithString("invalid HTTP method"))
		return
	}

	ctx := contextWithRequest(r.Context(), r)
	body := http.MaxBytesReader(w, r.Body, s.limit())
	reply, err := s.Call(ctx, r.ContentLength, body)
	if err != nil {
		if f := s.onError(w, r, err); f != nil {
			s.writeFault(w, http.StatusOK, f)
		}
		if !errors.Is(err, context.Canceled) {
			s.logError(r, err)
		}
		return
	}

	if err := reply.Send(w, http.StatusOK); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) limit() int64 {
	if s.maxBody <= 0 {
		return DefaultMaxBodySize
	}
	return s.maxBody
}

func supportedMediaType(ct string) bool {
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/xml" || mt == "application/xml"
}

func (s *Server) writeFault(w http.ResponseWriter, status int, f *coder.Fault) {
	reply, err := NewReply(*f, s.opts)
	if err != nil {
		s.log.Error("encode fault", zap.Int("fault_code", f.Code), zap.Error(err))
		http.Error(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := reply.Send(w, status); err != nil {
		s.log.Debug("write fault", zap.Error(err))
	}
}

func (s *Server) logError(r *http.Request, err error) {
	var (
		tooLarge  *coder.TooLargeError
		malformed *coder.MalformedRequestError
	)
	switch {
	case errors.As(err, &tooLarge), errors.As(err, &malformed):
		s.log.Info("rejected request", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
	default:
		s.log.Error("request failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
	}
}

// ErrorHandler handles an error that isn't a fault. It either writes a
// response itself and returns nil, or returns the fault to send.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error) *coder.Fault

// DefaultErrorHandler rejects oversized bodies with 413 and malformed
// requests with a parse error fault. Any other error, including errors of
// methods, results in a 500 response.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) *coder.Fault {
	if f := requestFault(w, err); f != nil {
		return f
	}
	if tooLarge(err) {
		return nil
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	return nil
}

// FaultOnError is like DefaultErrorHandler, except that errors of methods and
// of encoding their results become application error faults.
func FaultOnError(w http.ResponseWriter, r *http.Request, err error) *coder.Fault {
	if f := requestFault(w, err); f != nil {
		return f
	}
	if tooLarge(err) {
		return nil
	}
	return coder.ApplicationError.WithError(err)
}

func tooLarge(err error) bool {
	var e *coder.TooLargeError
	return errors.As(err, &e)
}

// requestFault handles errors caused by the request itself.
func requestFault(w http.ResponseWriter, err error) *coder.Fault {
	if tooLarge(err) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return nil
	}

	var malformed *coder.MalformedRequestError
	if errors.As(err, &malformed) {
		return coder.ParseError.WithError(err)
	}
	return nil
}
