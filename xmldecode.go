package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// Unmarshal decodes a XML-RPC method call. The returned request always has a
// method name and a non-nil (possibly empty) params slice.
//
// Document type declarations are rejected, so no external entity is ever
// resolved.
func Unmarshal(data []byte, opts coder.Options) (*coder.Request, error) {
	d := newDecoder(data, opts)

	if err := d.root("methodCall"); err != nil {
		return nil, err
	}

	req := &coder.Request{}
	for {
		c, err := d.child()
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}

		switch c.Name.Local {
		case "methodName":
			s, err := d.text()
			if err != nil {
				return nil, err
			}
			req.Method = strings.TrimSpace(s)

		case "params":
			req.Params, err = d.params()
			if err != nil {
				return nil, err
			}

		default:
			return nil, malformedf("unexpected element <%s> in <methodCall>", c.Name.Local)
		}
	}

	if err := d.end(); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return nil, malformedf("missing methodName")
	}
	if req.Params == nil {
		req.Params = []interface{}{}
	}
	return req, nil
}

// UnmarshalResponse decodes a XML-RPC method response into either its result
// or its fault.
func UnmarshalResponse(data []byte, opts coder.Options) (*coder.Response, error) {
	d := newDecoder(data, opts)

	if err := d.root("methodResponse"); err != nil {
		return nil, err
	}

	c, err := d.child()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, malformedf("empty <methodResponse>")
	}

	var resp *coder.Response
	switch c.Name.Local {
	case "params":
		params, err := d.params()
		if err != nil {
			return nil, err
		}
		if len(params) != 1 {
			return nil, malformedf("response has %d params, want 1", len(params))
		}
		resp = coder.NewResult(params[0])

	case "fault":
		f, err := d.fault()
		if err != nil {
			return nil, err
		}
		resp = f.Response()

	default:
		return nil, malformedf("unexpected element <%s> in <methodResponse>", c.Name.Local)
	}

	if c, err := d.child(); err != nil {
		return nil, err
	} else if c != nil {
		return nil, malformedf("unexpected element <%s> in <methodResponse>", c.Name.Local)
	}
	if err := d.end(); err != nil {
		return nil, err
	}
	return resp, nil
}

func malformedf(format string, args ...interface{}) error {
	return &coder.MalformedRequestError{Msg: fmt.Sprintf(format, args...)}
}

type decoder struct {
	x     *xml.Decoder
	opts  coder.Options
	depth int
}

func newDecoder(data []byte, opts coder.Options) *decoder {
	x := xml.NewDecoder(bytes.NewReader(data))
	x.Strict = true
	x.CharsetReader = charset.NewReaderLabel
	return &decoder{x: x, opts: opts}
}

var errDirective = errors.New("document type declarations are not allowed")

// next returns the next token, skipping comments and processing instructions.
func (d *decoder) next() (xml.Token, error) {
	for {
		tok, err := d.x.Token()
		if err == io.EOF {
			return nil, err
		}
		if err != nil {
			return nil, &coder.MalformedRequestError{Err: err}
		}

		switch tok.(type) {
		case xml.Comment, xml.ProcInst:
			continue
		case xml.Directive:
			return nil, &coder.MalformedRequestError{Err: errDirective}
		}
		return tok, nil
	}
}

// token is next with a premature end of document reported as malformed.
func (d *decoder) token() (xml.Token, error) {
	tok, err := d.next()
	if err == io.EOF {
		return nil, malformedf("unexpected end of document")
	}
	return tok, err
}

// root reads up to the start of the root element, which must be called name.
func (d *decoder) root(name string) error {
	for {
		tok, err := d.next()
		if err == io.EOF {
			return malformedf("empty document")
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != name {
				return malformedf("unexpected root element <%s>, want <%s>", t.Name.Local, name)
			}
			return nil
		case xml.CharData:
			if !isSpace(t) {
				return malformedf("unexpected text before root element")
			}
		default:
			return malformedf("unexpected %T before root element", t)
		}
	}
}

// end checks that nothing but whitespace follows the root element.
func (d *decoder) end() error {
	for {
		tok, err := d.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t, ok := tok.(xml.CharData); !ok || !isSpace(t) {
			return malformedf("unexpected content after root element")
		}
	}
}

// child returns the next child element of the current element, or nil once
// the end of the current element is reached.
func (d *decoder) child() (*xml.StartElement, error) {
	for {
		tok, err := d.token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return &t, nil
		case xml.EndElement:
			return nil, nil
		case xml.CharData:
			if !isSpace(t) {
				return nil, malformedf("unexpected text %q", strings.TrimSpace(string(t)))
			}
		}
	}
}

// text returns the character data of the current element up to its end.
func (d *decoder) text() (string, error) {
	var buf []byte
	for {
		tok, err := d.token()
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.CharData:
			buf = append(buf, t...)
		case xml.EndElement:
			return string(buf), nil
		case xml.StartElement:
			return "", malformedf("unexpected element <%s> in text", t.Name.Local)
		}
	}
}

// expect reads the next child element, which must be called name.
func (d *decoder) expect(name, parent string) error {
	c, err := d.child()
	if err != nil {
		return err
	}
	if c == nil {
		return malformedf("missing <%s> in <%s>", name, parent)
	}
	if c.Name.Local != name {
		return malformedf("unexpected element <%s> in <%s>", c.Name.Local, parent)
	}
	return nil
}

// close reads the end of the current element, which must have no further
// children.
func (d *decoder) close(parent string) error {
	c, err := d.child()
	if err != nil {
		return err
	}
	if c != nil {
		return malformedf("unexpected element <%s> in <%s>", c.Name.Local, parent)
	}
	return nil
}

func (d *decoder) params() ([]interface{}, error) {
	params := []interface{}{}
	for {
		c, err := d.child()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return params, nil
		}
		if c.Name.Local != "param" {
			return nil, malformedf("unexpected element <%s> in <params>", c.Name.Local)
		}

		if err := d.expect("value", "param"); err != nil {
			return nil, err
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		if err := d.close("param"); err != nil {
			return nil, err
		}
		params = append(params, v)
	}
}

func (d *decoder) fault() (*coder.Fault, error) {
	if err := d.expect("value", "fault"); err != nil {
		return nil, err
	}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if err := d.close("fault"); err != nil {
		return nil, err
	}

	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, malformedf("fault value is not a struct")
	}
	code, ok := m["faultCode"].(int)
	if !ok {
		return nil, malformedf("fault has no integer faultCode")
	}
	str, ok := m["faultString"].(string)
	if !ok {
		return nil, malformedf("fault has no faultString")
	}
	return &coder.Fault{Code: code, String: str}, nil
}

// value decodes the content of a <value> element, whose start has been read.
// Untyped content is a string.
func (d *decoder) value() (interface{}, error) {
	if d.depth >= maxDepth {
		return nil, malformedf("value nested too deeply")
	}
	d.depth++
	defer func() { d.depth-- }()

	var buf []byte
	for {
		tok, err := d.token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.CharData:
			buf = append(buf, t...)
		case xml.EndElement:
			return string(buf), nil
		case xml.StartElement:
			if !isSpace(buf) {
				return nil, malformedf("mixed content in <value>")
			}
			v, err := d.typed(t)
			if err != nil {
				return nil, err
			}
			if err := d.close("value"); err != nil {
				return nil, err
			}
			return v, nil
		}
	}
}

func (d *decoder) typed(t xml.StartElement) (interface{}, error) {
	switch name := t.Name.Local; name {
	case "int", "i4":
		return d.integer(name, 32)

	case "i8":
		return d.integer(name, 64)

	case "boolean":
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		switch strings.TrimSpace(s) {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, malformedf("invalid boolean %q", s)

	case "string":
		return d.text()

	case "double":
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, &coder.MalformedRequestError{Msg: "invalid double", Err: err}
		}
		return f, nil

	case "dateTime.iso8601":
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		dt := coder.DateTime{Value: strings.TrimSpace(s)}
		if !d.opts.UseDatetime {
			return dt, nil
		}
		tm, err := dt.Time()
		if err != nil {
			return nil, &coder.MalformedRequestError{Err: err}
		}
		return tm, nil

	case "base64":
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(stripSpace(s))
		if err != nil {
			return nil, &coder.MalformedRequestError{Msg: "invalid base64", Err: err}
		}
		return b, nil

	case "nil":
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) != "" {
			return nil, malformedf("<nil> must be empty")
		}
		return nil, nil

	case "array":
		return d.array()

	case "struct":
		return d.structValue()

	default:
		return nil, malformedf("unsupported value type <%s>", name)
	}
}

func (d *decoder) integer(name string, bitSize int) (interface{}, error) {
	s, err := d.text()
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bitSize)
	if err != nil {
		return nil, &coder.MalformedRequestError{Msg: "invalid <" + name + ">", Err: err}
	}
	return int(n), nil
}

func (d *decoder) array() (interface{}, error) {
	if err := d.expect("data", "array"); err != nil {
		return nil, err
	}

	vs := []interface{}{}
	for {
		c, err := d.child()
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		if c.Name.Local != "value" {
			return nil, malformedf("unexpected element <%s> in <data>", c.Name.Local)
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}

	if err := d.close("array"); err != nil {
		return nil, err
	}
	return vs, nil
}

func (d *decoder) structValue() (interface{}, error) {
	m := map[string]interface{}{}
	for {
		c, err := d.child()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return m, nil
		}
		if c.Name.Local != "member" {
			return nil, malformedf("unexpected element <%s> in <struct>", c.Name.Local)
		}

		name, v, err := d.member()
		if err != nil {
			return nil, err
		}
		m[name] = v
	}
}

// member decodes the <name> and <value> of a struct member, in either order.
func (d *decoder) member() (string, interface{}, error) {
	var (
		name          string
		v             interface{}
		hasName, hasV bool
	)
	for {
		c, err := d.child()
		if err != nil {
			return "", nil, err
		}
		if c == nil {
			break
		}

		switch {
		case c.Name.Local == "name" && !hasName:
			if name, err = d.text(); err != nil {
				return "", nil, err
			}
			hasName = true
		case c.Name.Local == "value" && !hasV:
			if v, err = d.value(); err != nil {
				return "", nil, err
			}
			hasV = true
		default:
			return "", nil, malformedf("unexpected element <%s> in <member>", c.Name.Local)
		}
	}

	if !hasName {
		return "", nil, malformedf("missing <name> in <member>")
	}
	if !hasV {
		return "", nil, malformedf("missing <value> in <member>")
	}
	return name, v, nil
}

func isSpace(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
