package xmlrpc

import (
	"errors"
	"io"
	"net/http"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// DefaultMaxBodySize is the largest request body accepted by default (8 MiB).
const DefaultMaxBodySize = 1 << 23

// CheckContentLength rejects a declared body length larger than limit with a
// *coder.TooLargeError. A body of exactly limit bytes passes. A limit of zero
// or less means DefaultMaxBodySize. An unknown length (negative) passes, the
// limit is then enforced while reading the body, see ReadLimited.
func CheckContentLength(n, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	if n > limit {
		return &coder.TooLargeError{Size: n, Limit: limit}
	}
	return nil
}

// ReadLimited checks the declared length n before reading anything from body,
// then reads body, failing with a *coder.TooLargeError as soon as more than
// limit bytes show up. body may be an http.MaxBytesReader.
func ReadLimited(body io.Reader, n, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	if err := CheckContentLength(n, limit); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &coder.TooLargeError{Size: n, Limit: limit}
		}
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &coder.TooLargeError{Size: n, Limit: limit}
	}
	return data, nil
}
