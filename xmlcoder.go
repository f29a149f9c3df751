package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// maxDepth bounds the nesting of arrays and structs, both when encoding and
// when decoding.
const maxDepth = 256

// Marshal encodes v as a XML-RPC method response. If v is a coder.Fault (or a
// non-nil *coder.Fault) a fault response is produced, otherwise v is the
// single response parameter.
func Marshal(v interface{}, opts coder.Options) ([]byte, error) {
	e := newEncoder(opts)

	if f, ok := coder.FaultOf(v); ok {
		return e.document(func() error {
			e.WriteString("<methodResponse>\n<fault>\n")
			if err := e.fault(*f); err != nil {
				return err
			}
			e.WriteString("</fault>\n</methodResponse>\n")
			return nil
		})
	}

	return e.document(func() error {
		e.WriteString("<methodResponse>\n<params>\n")
		if err := e.param(v); err != nil {
			return err
		}
		e.WriteString("</params>\n</methodResponse>\n")
		return nil
	})
}

// MarshalCall encodes a XML-RPC method call of method with params.
func MarshalCall(method string, params []interface{}, opts coder.Options) ([]byte, error) {
	if method == "" {
		return nil, &coder.SerializationError{Type: "methodCall", Reason: "empty method name"}
	}

	e := newEncoder(opts)
	return e.document(func() error {
		e.WriteString("<methodCall>\n<methodName>")
		if err := e.text(method); err != nil {
			return err
		}
		e.WriteString("</methodName>\n<params>\n")
		for _, p := range params {
			if err := e.param(p); err != nil {
				return err
			}
		}
		e.WriteString("</params>\n</methodCall>\n")
		return nil
	})
}

// Codec holds the codec options of an endpoint. Its methods use those
// options; the package level functions take them per call.
type Codec struct {
	Options coder.Options
}

// Marshal encodes v as a method response, see Marshal.
func (c Codec) Marshal(v interface{}) ([]byte, error) { return Marshal(v, c.Options) }

// Unmarshal decodes a method call, see Unmarshal.
func (c Codec) Unmarshal(data []byte) (*coder.Request, error) { return Unmarshal(data, c.Options) }

type encoder struct {
	bytes.Buffer
	opts  coder.Options
	depth int
}

func newEncoder(opts coder.Options) *encoder {
	return &encoder{opts: opts}
}

// document runs body to produce the UTF-8 document, then prefixes the XML
// declaration and transcodes the whole to the configured charset.
func (e *encoder) document(body func() error) ([]byte, error) {
	name := e.opts.Charset()
	enc, err := coder.LookupEncoding(name)
	if err != nil {
		return nil, err
	}

	e.WriteString("<?xml version='1.0' encoding='")
	e.WriteString(name)
	e.WriteString("'?>\n")

	if err := body(); err != nil {
		return nil, err
	}

	if enc == nil {
		return e.Bytes(), nil
	}
	return transcode(enc, name, e.Bytes())
}

func transcode(enc encoding.Encoding, name string, doc []byte) ([]byte, error) {
	out, err := enc.NewEncoder().Bytes(doc)
	if err == nil {
		return out, nil
	}

	// Find the offending rune to report it.
	for _, r := range string(doc) {
		if r < utf8.RuneSelf {
			continue
		}
		if _, rerr := enc.NewEncoder().String(string(r)); rerr != nil {
			return nil, &coder.EncodingError{Charset: name, Rune: r, Err: rerr}
		}
	}
	return nil, &coder.EncodingError{Charset: name, Err: err}
}

func (e *encoder) param(v interface{}) error {
	e.WriteString("<param>\n")
	if err := e.value(v); err != nil {
		return err
	}
	e.WriteString("</param>\n")
	return nil
}

func (e *encoder) fault(f coder.Fault) error {
	return e.members([]member{
		{"faultCode", reflect.ValueOf(f.Code)},
		{"faultString", reflect.ValueOf(f.String)},
	})
}

func (e *encoder) value(v interface{}) error {
	switch v := v.(type) {
	case nil:
		return e.null("nil")
	case bool:
		e.boolean(v)
		return nil
	case int:
		return e.integer(int64(v), "int")
	case int32:
		return e.integer(int64(v), "int32")
	case int64:
		return e.integer(v, "int64")
	case float64:
		return e.double(v, 64)
	case string:
		return e.str(v)
	case []byte:
		e.binary(v)
		return nil
	case time.Time:
		return e.dateTime(v.UTC().Format(coder.DateTimeLayout))
	case coder.DateTime:
		return e.dateTime(v.Value)
	case coder.Fault:
		return e.nested(func() error { return e.fault(v) })
	case *coder.Fault:
		if v == nil {
			return e.null("*coder.Fault")
		}
		return e.nested(func() error { return e.fault(*v) })
	}
	return e.reflectValue(reflect.ValueOf(v))
}

func (e *encoder) reflectValue(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return e.null(rv.Type().String())
		}
		return e.nested(func() error { return e.value(rv.Elem().Interface()) })

	case reflect.Bool:
		e.boolean(rv.Bool())
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.integer(rv.Int(), rv.Type().String())

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt32 {
			return &coder.SerializationError{Type: rv.Type().String(), Reason: "integer exceeds XML-RPC limits"}
		}
		return e.integer(int64(u), rv.Type().String())

	case reflect.Float32:
		return e.double(rv.Float(), 32)

	case reflect.Float64:
		return e.double(rv.Float(), 64)

	case reflect.String:
		return e.str(rv.String())

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.binary(rv.Bytes())
			return nil
		}
		return e.array(rv)

	case reflect.Array:
		return e.array(rv)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return &coder.SerializationError{Type: rv.Type().String(), Reason: "struct keys must be strings"}
		}
		ms := make([]member, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ms = append(ms, member{iter.Key().String(), iter.Value()})
		}
		return e.nested(func() error { return e.members(ms) })

	case reflect.Struct:
		if t, ok := rv.Interface().(time.Time); ok {
			return e.dateTime(t.UTC().Format(coder.DateTimeLayout))
		}
		return e.nested(func() error { return e.members(structMembers(rv)) })
	}

	return &coder.SerializationError{Type: rv.Type().String(), Reason: "unsupported type"}
}

// nested tracks the depth of containers so cyclic values fail instead of
// recursing forever.
func (e *encoder) nested(fn func() error) error {
	if e.depth >= maxDepth {
		return &coder.SerializationError{Reason: "value nested too deeply"}
	}
	e.depth++
	defer func() { e.depth-- }()
	return fn()
}

func (e *encoder) null(typ string) error {
	if !e.opts.AllowNone {
		return &coder.SerializationError{Type: typ, Reason: "nil is not allowed unless AllowNone is set"}
	}
	e.WriteString("<value><nil/></value>\n")
	return nil
}

func (e *encoder) boolean(b bool) {
	if b {
		e.WriteString("<value><boolean>1</boolean></value>\n")
	} else {
		e.WriteString("<value><boolean>0</boolean></value>\n")
	}
}

func (e *encoder) integer(n int64, typ string) error {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return &coder.SerializationError{Type: typ, Reason: "integer exceeds XML-RPC limits"}
	}
	e.WriteString("<value><int>")
	e.WriteString(strconv.FormatInt(n, 10))
	e.WriteString("</int></value>\n")
	return nil
}

func (e *encoder) double(f float64, bitSize int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &coder.SerializationError{Type: "float" + strconv.Itoa(bitSize), Reason: "non-finite number"}
	}
	e.WriteString("<value><double>")
	e.WriteString(strconv.FormatFloat(f, 'f', -1, bitSize))
	e.WriteString("</double></value>\n")
	return nil
}

func (e *encoder) str(s string) error {
	e.WriteString("<value><string>")
	if err := e.text(s); err != nil {
		return err
	}
	e.WriteString("</string></value>\n")
	return nil
}

func (e *encoder) binary(b []byte) {
	e.WriteString("<value><base64>")
	e.WriteString(base64.StdEncoding.EncodeToString(b))
	e.WriteString("</base64></value>\n")
}

func (e *encoder) dateTime(s string) error {
	e.WriteString("<value><dateTime.iso8601>")
	if err := e.text(s); err != nil {
		return err
	}
	e.WriteString("</dateTime.iso8601></value>\n")
	return nil
}

func (e *encoder) array(rv reflect.Value) error {
	return e.nested(func() error {
		e.WriteString("<value><array><data>\n")
		for i := 0; i < rv.Len(); i++ {
			if err := e.value(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		e.WriteString("</data></array></value>\n")
		return nil
	})
}

type member struct {
	name  string
	value reflect.Value
}

// members writes a struct. Members are sorted by name so output is stable.
func (e *encoder) members(ms []member) error {
	sort.Slice(ms, func(i, j int) bool { return ms[i].name < ms[j].name })

	e.WriteString("<value><struct>\n")
	for _, m := range ms {
		e.WriteString("<member>\n<name>")
		if err := e.text(m.name); err != nil {
			return err
		}
		e.WriteString("</name>\n")
		if err := e.value(m.value.Interface()); err != nil {
			return err
		}
		e.WriteString("</member>\n")
	}
	e.WriteString("</struct></value>\n")
	return nil
}

// structMembers lists the exported fields of a Go struct. The xmlrpc tag
// renames a member, "-" skips it and the omitempty option skips zero values.
func structMembers(rv reflect.Value) []member {
	t := rv.Type()
	ms := make([]member, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Name
		omitEmpty := false
		if tag, ok := f.Tag.Lookup("xmlrpc"); ok {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		ms = append(ms, member{name, fv})
	}
	return ms
}

var errInvalidUTF8 = errors.New("invalid UTF-8")

// text writes escaped character data. Only &, < and > need escaping; \r is
// written as a character reference so it survives line end normalization.
func (e *encoder) text(s string) error {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			return &coder.EncodingError{Charset: e.opts.Charset(), Err: errInvalidUTF8}
		case r == '&':
			e.WriteString("&amp;")
		case r == '<':
			e.WriteString("&lt;")
		case r == '>':
			e.WriteString("&gt;")
		case r == '\r':
			e.WriteString("&#13;")
		case !isXMLChar(r):
			return &coder.SerializationError{Type: "string", Reason: fmt.Sprintf("character %U is not allowed in XML", r)}
		default:
			e.WriteString(s[i : i+size])
		}
		i += size
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
