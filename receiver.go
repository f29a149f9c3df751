package xmlrpc

import (
	"context"
	"fmt"
	"reflect"
	"time"
	"unicode"

	"github.com/dwlnetnl/xmlrpc/coder"
)

var (
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	timeType     = reflect.TypeOf(time.Time{})
	dateTimeType = reflect.TypeOf(coder.DateTime{})
)

// Receiver returns the exported methods of rcvr shaped like
//
//	func(ctx context.Context, args...) (T, error)
//
// as Methods. The last argument may be variadic. Each method is registered
// under its name with the leading upper case run lowered ("Echo" becomes
// "echo", "URLFor" becomes "urlFor"), prefixed by prefix and a dot unless
// prefix is empty. Other methods are ignored.
//
// Reflection is only used here and to call the methods; the returned Methods
// is an ordinary map.
func Receiver(prefix string, rcvr interface{}) (Methods, error) {
	v := reflect.ValueOf(rcvr)
	if !v.IsValid() {
		return nil, fmt.Errorf("xmlrpc: receiver is nil")
	}

	t := v.Type()
	ms := make(Methods)
	for i := 0; i < t.NumMethod(); i++ {
		fn := v.Method(i)
		if !isHandlerFunc(fn.Type()) {
			continue
		}

		name := methodName(t.Method(i).Name)
		if prefix != "" {
			name = prefix + "." + name
		}
		ms[name] = &reflectMethod{fn: fn}
	}

	if len(ms) == 0 {
		return nil, fmt.Errorf("xmlrpc: type %s has no suitable methods", t)
	}
	return ms, nil
}

// Func returns fn as a Method. fn must be a function shaped like
//
//	func(ctx context.Context, args...) (T, error)
func Func(fn interface{}) (Method, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("xmlrpc: %T is not a function", fn)
	}
	if !isHandlerFunc(v.Type()) {
		return nil, fmt.Errorf("xmlrpc: %s is not shaped like func(context.Context, ...) (T, error)", v.Type())
	}
	return &reflectMethod{fn: v}, nil
}

// MustFunc is like Func but panics if fn has the wrong shape.
func MustFunc(fn interface{}) Method {
	m, err := Func(fn)
	if err != nil {
		panic(err)
	}
	return m
}

func isHandlerFunc(t reflect.Type) bool {
	return t.NumIn() >= 1 && t.In(0) == contextType &&
		t.NumOut() == 2 && t.Out(1) == errorType
}

// methodName lowers the leading upper case run of a Go method name.
func methodName(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs) && unicode.IsUpper(rs[i]); i++ {
		if i > 0 && i+1 < len(rs) && !unicode.IsUpper(rs[i+1]) {
			break
		}
		rs[i] = unicode.ToLower(rs[i])
	}
	return string(rs)
}

type reflectMethod struct {
	fn reflect.Value
}

func (m *reflectMethod) Invoke(ctx context.Context, params []interface{}) (interface{}, error) {
	t := m.fn.Type()
	nargs := t.NumIn() - 1

	if t.IsVariadic() {
		if len(params) < nargs-1 {
			return nil, coder.InvalidParams.WithString(fmt.Sprintf("got %d params, want at least %d", len(params), nargs-1))
		}
	} else if len(params) != nargs {
		return nil, coder.InvalidParams.WithString(fmt.Sprintf("got %d params, want %d", len(params), nargs))
	}

	if ctx == nil {
		ctx = context.Background()
	}

	in := make([]reflect.Value, 0, len(params)+1)
	in = append(in, reflect.ValueOf(ctx))
	for i, p := range params {
		var pt reflect.Type
		if t.IsVariadic() && i >= nargs-1 {
			pt = t.In(nargs).Elem()
		} else {
			pt = t.In(i + 1)
		}

		v, err := convertParam(p, pt)
		if err != nil {
			return nil, coder.InvalidParams.WithString(fmt.Sprintf("param %d: %v", i+1, err))
		}
		in = append(in, v)
	}

	out := m.fn.Call(in)
	var err error
	if e := out[1].Interface(); e != nil {
		err = e.(error)
	}
	return out[0].Interface(), err
}

// convertParam converts a decoded value to the parameter type t.
func convertParam(p interface{}, t reflect.Type) (reflect.Value, error) {
	if p == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	v := reflect.ValueOf(p)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch {
	case t == timeType && v.Type() == dateTimeType:
		tm, err := p.(coder.DateTime).Time()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(tm), nil

	case t == dateTimeType && v.Type() == timeType:
		return reflect.ValueOf(coder.NewDateTime(p.(time.Time))), nil

	case v.Kind() == reflect.Int && isIntKind(t.Kind()):
		n := reflect.New(t).Elem()
		if isUintKind(t.Kind()) {
			if v.Int() < 0 || n.OverflowUint(uint64(v.Int())) {
				return reflect.Value{}, fmt.Errorf("%d overflows %s", v.Int(), t)
			}
			n.SetUint(uint64(v.Int()))
			return n, nil
		}
		if n.OverflowInt(v.Int()) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", v.Int(), t)
		}
		n.SetInt(v.Int())
		return n, nil

	case v.Kind() == reflect.Int && (t.Kind() == reflect.Float64 || t.Kind() == reflect.Float32):
		return v.Convert(t), nil

	case v.Kind() == t.Kind() && v.Type().ConvertibleTo(t) && isScalarKind(t.Kind()):
		return v.Convert(t), nil

	case v.Kind() == reflect.Slice && t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		s := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertParam(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			s.Index(i).Set(e)
		}
		return s, nil

	case v.Kind() == reflect.Map && t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		m := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			e, err := convertParam(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("member %q: %w", iter.Key().String(), err)
			}
			m.SetMapIndex(iter.Key().Convert(t.Key()), e)
		}
		return m, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return isUintKind(k)
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64:
		return true
	}
	return isIntKind(k)
}
