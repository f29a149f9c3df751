package xmlrpc

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwlnetnl/xmlrpc/coder"
)

func TestCheckContentLength(t *testing.T) {
	tests := []struct {
		name  string
		n     int64
		limit int64
		ok    bool
	}{
		{"exactly 8 MiB", 8 * 1024 * 1024, 0, true},
		{"one byte over", 8*1024*1024 + 1, 0, false},
		{"unknown length", -1, 0, true},
		{"empty", 0, 0, true},
		{"custom limit", 11, 10, false},
		{"custom limit boundary", 10, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckContentLength(tt.n, tt.limit)
			if tt.ok {
				assert.NoError(t, err)
				return
			}

			var terr *coder.TooLargeError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.n, terr.Size)
		})
	}
}

func TestReadLimited(t *testing.T) {
	b, err := ReadLimited(strings.NewReader("0123456789"), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(b))

	var terr *coder.TooLargeError

	// Undeclared length.
	_, err = ReadLimited(strings.NewReader("0123456789a"), -1, 10)
	assert.ErrorAs(t, err, &terr)

	// Understated length.
	_, err = ReadLimited(strings.NewReader("0123456789a"), 3, 10)
	assert.ErrorAs(t, err, &terr)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadLimited_declaredBeforeRead(t *testing.T) {
	// The body is never read when the declared length is too large.
	_, err := ReadLimited(failingReader{}, DefaultMaxBodySize+1, 0)

	var terr *coder.TooLargeError
	assert.ErrorAs(t, err, &terr)
}

func TestReadLimited_maxBytesReader(t *testing.T) {
	w := httptest.NewRecorder()
	body := http.MaxBytesReader(w, io.NopCloser(bytes.NewReader(make([]byte, 64))), 16)

	_, err := ReadLimited(body, -1, 16)

	var terr *coder.TooLargeError
	assert.ErrorAs(t, err, &terr)
}
