package coder

import (
	"errors"
	"fmt"
	"strconv"
)

// Fault represents a XML-RPC fault: the protocol level way for a method to
// report failure. A Fault is also an error, so handlers may either return it
// as their result or as their error.
type Fault struct {
	Code   int
	String string
}

func (f Fault) Error() string {
	return "xmlrpc: fault " + strconv.Itoa(f.Code) + ": " + f.String
}

// WithString returns a copy of the fault with str appended to the message.
func (f Fault) WithString(str string) *Fault {
	v := f
	v.String = f.String + ": " + str
	return &v
}

// WithError returns a copy of the fault with err appended to the message.
func (f Fault) WithError(err error) *Fault {
	return f.WithString(err.Error())
}

// Response returns a response carrying the fault.
func (f Fault) Response() *Response {
	return &Response{Fault: &f}
}

// AsFault reports whether err is, or wraps, a Fault.
func AsFault(err error) (*Fault, bool) {
	var p *Fault
	if errors.As(err, &p) && p != nil {
		return p, true
	}
	var v Fault
	if errors.As(err, &v) {
		return &v, true
	}
	return nil, false
}

// FaultOf reports whether the method result v is a Fault.
func FaultOf(v interface{}) (*Fault, bool) {
	switch f := v.(type) {
	case Fault:
		return &f, true
	case *Fault:
		return f, f != nil
	}
	return nil, false
}

// Fault codes from the XML-RPC fault code interoperability specification.
// See http://xmlrpc-epi.sourceforge.net/specs/rfc.fault_codes.php.
var (
	// ParseError is returned when the request document is not well formed.
	ParseError = Fault{Code: -32700, String: "parse error. not well formed"}

	// UnsupportedEncoding is returned when the request charset is unknown.
	UnsupportedEncoding = Fault{Code: -32701, String: "parse error. unsupported encoding"}

	// InvalidCharacter is returned when the request contains a character
	// invalid for its encoding.
	InvalidCharacter = Fault{Code: -32702, String: "parse error. invalid character for encoding"}

	// InvalidRequest is returned when a well formed document isn't a valid
	// XML-RPC method call.
	InvalidRequest = Fault{Code: -32600, String: "server error. invalid xml-rpc. not conforming to spec"}

	// MethodNotFound is returned when no handler is registered for the called
	// method name.
	MethodNotFound = Fault{Code: -32601, String: "server error. requested method not found"}

	// InvalidParams is returned when the params don't fit the method.
	InvalidParams = Fault{Code: -32602, String: "server error. invalid method parameters"}

	// InternalError is returned for internal XML-RPC errors.
	InternalError = Fault{Code: -32603, String: "server error. internal xml-rpc error"}

	// ApplicationError is used when an application error is translated into a
	// fault by the caller.
	ApplicationError = Fault{Code: -32500, String: "application error"}

	// SystemError reports conditions of the serving system, such as rate
	// limiting.
	SystemError = Fault{Code: -32400, String: "system error"}

	// TransportError reports transport level failures.
	TransportError = Fault{Code: -32300, String: "transport error"}
)

// TooLargeError is returned when a request declares a body larger than the
// accepted limit.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("xmlrpc: body too large (%d bytes, limit %d)", e.Size, e.Limit)
}

// MalformedRequestError is returned when a document is not a well formed
// XML-RPC message.
type MalformedRequestError struct {
	Msg string
	Err error
}

func (e *MalformedRequestError) Error() string {
	if e.Err == nil {
		return "xmlrpc: malformed request: " + e.Msg
	}
	if e.Msg == "" {
		return "xmlrpc: malformed request: " + e.Err.Error()
	}
	return "xmlrpc: malformed request: " + e.Msg + ": " + e.Err.Error()
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// SerializationError is returned when a value cannot be represented in the
// XML-RPC value model.
type SerializationError struct {
	Type   string
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Type == "" {
		return "xmlrpc: cannot marshal value: " + e.Reason
	}
	return "xmlrpc: cannot marshal " + e.Type + ": " + e.Reason
}

// EncodingError is returned when text cannot be represented in the configured
// charset, or when the charset itself is not usable.
type EncodingError struct {
	Charset string
	Rune    rune
	Err     error
}

func (e *EncodingError) Error() string {
	if e.Rune != 0 {
		return fmt.Sprintf("xmlrpc: character %U is not representable in %s", e.Rune, e.Charset)
	}
	if e.Err != nil {
		return "xmlrpc: encoding " + e.Charset + ": " + e.Err.Error()
	}
	return "xmlrpc: encoding " + e.Charset + " failed"
}

func (e *EncodingError) Unwrap() error { return e.Err }
