// Package coder provides the protocol model shared by the XML-RPC codec, the
// dispatch layer and the HTTP glue: requests, responses, faults, codec options
// and the error kinds each stage can produce.
package coder

import (
	"fmt"
	"strings"
	"time"
)

// Request represents a decoded XML-RPC method call. Method is never empty for
// a request produced by the codec.
type Request struct {
	Method string
	Params []interface{}
}

// Response represents a XML-RPC method response. Exactly one of Result or
// Fault is meaningful: a non-nil Fault means the call failed.
type Response struct {
	Result interface{}
	Fault  *Fault
}

// NewResult returns a successful response carrying v.
func NewResult(v interface{}) *Response {
	return &Response{Result: v}
}

// DefaultEncoding is the charset used when Options.Encoding is empty.
const DefaultEncoding = "utf-8"

// Options controls how values are encoded and decoded.
//
// A zero Options is valid: nil values are rejected, documents are written in
// UTF-8 and dates are decoded as DateTime wrappers.
type Options struct {
	// AllowNone permits encoding nil as the <nil/> extension.
	AllowNone bool

	// Encoding is the IANA name of the charset used for outgoing documents.
	Encoding string

	// UseDatetime decodes <dateTime.iso8601> values as time.Time instead of
	// DateTime.
	UseDatetime bool
}

// Charset returns the configured encoding or DefaultEncoding.
func (o Options) Charset() string {
	enc := strings.TrimSpace(o.Encoding)
	if enc == "" {
		return DefaultEncoding
	}
	return enc
}

// DateTimeLayout is the wire layout of <dateTime.iso8601> values.
const DateTimeLayout = "20060102T15:04:05"

// DateTime is the opaque form of a decoded <dateTime.iso8601> value. Value
// holds the wire text unchanged.
type DateTime struct {
	Value string
}

// NewDateTime formats t in DateTimeLayout. The wire format has no zone, so t
// is converted to UTC first.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Value: t.UTC().Format(DateTimeLayout)}
}

// dateTimeLayouts lists the accepted spellings, most common first.
var dateTimeLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04:05",
	"20060102T15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"20060102T150405",
}

// Time parses the wrapped value. Values without a zone are returned in UTC.
func (d DateTime) Time() (time.Time, error) {
	s := strings.TrimSpace(d.Value)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("coder: invalid dateTime.iso8601 value %q", d.Value)
}

func (d DateTime) String() string { return d.Value }
