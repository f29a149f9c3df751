package registry

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEndpoint_Key(t *testing.T) {
	e := Endpoint{Name: "calc", Addr: "10.0.0.1:8080"}
	assert.Equal(t, "/xmlrpc/calc/10.0.0.1:8080", e.Key())
	assert.True(t, strings.HasPrefix(e.Key(), ServiceKey("calc")))
}

func TestEndpoint_JSON(t *testing.T) {
	e := Endpoint{Name: "calc", Addr: ":8080", URL: "http://localhost:8080/RPC2", Methods: []string{"examples.echo"}}

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"calc","addr":":8080","url":"http://localhost:8080/RPC2","methods":["examples.echo"]}`, string(b))
}

func TestRegistry(t *testing.T) {
	endpoints := os.Getenv("XMLRPC_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("XMLRPC_ETCD_ENDPOINTS not set")
	}

	r, err := New(strings.Split(endpoints, ","), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e := Endpoint{Name: "registry-test", Addr: "127.0.0.1:1", URL: "http://127.0.0.1:1/RPC2"}
	require.NoError(t, r.Register(ctx, e, 5))

	eps, err := r.List(ctx, e.Name)
	require.NoError(t, err)
	assert.Contains(t, eps, e)

	require.NoError(t, r.Deregister(ctx, e))

	eps, err = r.List(ctx, e.Name)
	require.NoError(t, err)
	assert.NotContains(t, eps, e)
}

func TestRegister_invalid(t *testing.T) {
	r := NewWithClient(nil, nil)
	err := r.Register(context.Background(), Endpoint{Name: "x"}, 5)
	assert.Error(t, err)
}
