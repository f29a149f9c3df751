package coder

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var errUnsupportedCharset = errors.New("unsupported charset")

// charsetAliases maps common codec names that are not IANA names.
var charsetAliases = map[string]string{
	"ascii":      "us-ascii",
	"646":        "us-ascii",
	"latin-1":    "iso-8859-1",
	"l1":         "iso-8859-1",
	"iso8859-1":  "iso-8859-1",
	"iso8859-15": "iso-8859-15",
}

// LookupEncoding returns the encoding registered under name. Names are
// resolved through charsetAliases, the IANA registry and then the WHATWG
// labels. A nil encoding and nil error mean UTF-8, which needs no
// transcoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	key := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	if key == "" || isUTF8(key) {
		return nil, nil
	}
	if alias, ok := charsetAliases[key]; ok {
		key = alias
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		if henc, herr := htmlindex.Get(key); herr == nil {
			return henc, nil
		}
	}
	if err != nil {
		return nil, &EncodingError{Charset: name, Err: err}
	}
	if enc == nil {
		return nil, &EncodingError{Charset: name, Err: errUnsupportedCharset}
	}
	return enc, nil
}

func isUTF8(key string) bool {
	switch key {
	case "utf-8", "utf8", "csutf8":
		return true
	}
	return false
}

// Validate reports whether the options can be used for encoding.
func (o Options) Validate() error {
	_, err := LookupEncoding(o.Encoding)
	return err
}
