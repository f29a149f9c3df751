package xmlrpc

import (
	"net/http"
	"strconv"

	"github.com/dwlnetnl/xmlrpc/coder"
)

// ContentType is the media type of XML-RPC documents.
const ContentType = "text/xml"

// Reply is an encoded XML-RPC response ready to be sent.
type Reply struct {
	ContentType   string
	ContentLength int
	Body          []byte
}

// NewReply encodes v, a result or a coder.Fault, into a Reply.
func NewReply(v interface{}, opts coder.Options) (*Reply, error) {
	body, err := Marshal(v, opts)
	if err != nil {
		return nil, err
	}
	return &Reply{
		ContentType:   ContentType,
		ContentLength: len(body),
		Body:          body,
	}, nil
}

// Send writes the reply to w with the given status code.
func (r *Reply) Send(w http.ResponseWriter, status int) error {
	h := w.Header()
	h.Set("Content-Type", r.ContentType)
	h.Set("Content-Length", strconv.Itoa(r.ContentLength))
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}
