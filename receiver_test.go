package xmlrpc

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dwlnetnl/xmlrpc/coder"
)

type calculator struct{}

func (calculator) Add(_ context.Context, a, b int) (int, error) { return a + b, nil }

func (calculator) Sum(_ context.Context, xs ...float64) (float64, error) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum, nil
}

func (calculator) Join(_ context.Context, sep string, parts []string) (string, error) {
	return strings.Join(parts, sep), nil
}

func (calculator) Year(_ context.Context, t time.Time) (int, error) { return t.Year(), nil }

func (calculator) Keys(_ context.Context, m map[string]int) (int, error) { return len(m), nil }

func (calculator) Small(_ context.Context, n uint8) (uint8, error) { return n, nil }

func (calculator) Divide(_ context.Context, a, b int) (int, error) {
	if b == 0 {
		return 0, coder.Fault{Code: 1, String: "division by zero"}
	}
	return a / b, nil
}

func (calculator) URLFor(_ context.Context, path string) (string, error) {
	return "http://example.com/" + path, nil
}

// Not a handler: no context.
func (calculator) Ignored(a int) int { return a }

type receiverTestSuite struct {
	suite.Suite
	ms Methods
}

func (s *receiverTestSuite) SetupTest() {
	ms, err := Receiver("calc", calculator{})
	s.Require().NoError(err)
	s.ms = ms
}

func (s *receiverTestSuite) call(method string, params ...interface{}) (interface{}, error) {
	if params == nil {
		params = []interface{}{}
	}
	return s.ms.Dispatch(context.Background(), method, params)
}

func (s *receiverTestSuite) assertInvalidParams(err error) {
	f, ok := coder.AsFault(err)
	s.Require().True(ok, "got %v", err)
	s.Equal(-32602, f.Code)
}

func (s *receiverTestSuite) TestNames() {
	want := []string{
		"calc.add", "calc.divide", "calc.join", "calc.keys",
		"calc.small", "calc.sum", "calc.urlFor", "calc.year",
	}
	s.Equal(want, s.ms.Names())
}

func (s *receiverTestSuite) TestAdd() {
	v, err := s.call("calc.add", 1, 2)
	s.Require().NoError(err)
	s.Equal(3, v)
}

func (s *receiverTestSuite) TestArity() {
	_, err := s.call("calc.add", 1)
	s.assertInvalidParams(err)

	_, err = s.call("calc.add", 1, 2, 3)
	s.assertInvalidParams(err)
}

func (s *receiverTestSuite) TestTypeMismatch() {
	_, err := s.call("calc.add", "1", 2)
	s.assertInvalidParams(err)

	_, err = s.call("calc.add", nil, 2)
	s.assertInvalidParams(err)
}

func (s *receiverTestSuite) TestVariadic() {
	v, err := s.call("calc.sum")
	s.Require().NoError(err)
	s.Equal(0.0, v)

	v, err = s.call("calc.sum", 1.5, 2, 0.5)
	s.Require().NoError(err)
	s.Equal(4.0, v)
}

func (s *receiverTestSuite) TestSlice() {
	v, err := s.call("calc.join", "-", []interface{}{"a", "b"})
	s.Require().NoError(err)
	s.Equal("a-b", v)

	_, err = s.call("calc.join", "-", []interface{}{"a", 1})
	s.assertInvalidParams(err)
}

func (s *receiverTestSuite) TestMap() {
	v, err := s.call("calc.keys", map[string]interface{}{"a": 1, "b": 2})
	s.Require().NoError(err)
	s.Equal(2, v)
}

func (s *receiverTestSuite) TestDateTime() {
	v, err := s.call("calc.year", coder.DateTime{Value: "20240102T03:04:05"})
	s.Require().NoError(err)
	s.Equal(2024, v)

	v, err = s.call("calc.year", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(1999, v)
}

func (s *receiverTestSuite) TestOverflow() {
	v, err := s.call("calc.small", 255)
	s.Require().NoError(err)
	s.Equal(uint8(255), v)

	_, err = s.call("calc.small", 256)
	s.assertInvalidParams(err)

	_, err = s.call("calc.small", -1)
	s.assertInvalidParams(err)
}

func (s *receiverTestSuite) TestFault() {
	_, err := s.call("calc.divide", 1, 0)
	f, ok := coder.AsFault(err)
	s.Require().True(ok)
	s.Equal(coder.Fault{Code: 1, String: "division by zero"}, *f)
}

func Test_receiverTestSuite(t *testing.T) {
	suite.Run(t, new(receiverTestSuite))
}

func TestReceiver_noPrefix(t *testing.T) {
	ms, err := Receiver("", calculator{})
	require.NoError(t, err)
	assert.Contains(t, ms, "add")
	assert.Contains(t, ms, "urlFor")
}

func TestReceiver_invalid(t *testing.T) {
	_, err := Receiver("x", nil)
	assert.Error(t, err)

	_, err = Receiver("x", struct{}{})
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	m, err := Func(func(_ context.Context, s string) (string, error) { return strings.ToUpper(s), nil })
	require.NoError(t, err)

	v, err := m.Invoke(context.Background(), []interface{}{"what"})
	require.NoError(t, err)
	assert.Equal(t, "WHAT", v)

	_, err = Func(func(s string) string { return s })
	assert.Error(t, err)

	_, err = Func(42)
	assert.Error(t, err)

	assert.Panics(t, func() { MustFunc(fmt.Sprintf) })
}

func TestMethodName(t *testing.T) {
	tests := map[string]string{
		"Echo":   "echo",
		"URLFor": "urlFor",
		"ID":     "id",
		"A":      "a",
		"GetID":  "getID",
	}
	for in, want := range tests {
		assert.Equal(t, want, methodName(in), in)
	}
}
