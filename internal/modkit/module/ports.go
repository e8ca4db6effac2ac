package module

import (
	"fmt"
	"reflect"
)

// PortsOf finds a T in m's port set
// the set itself, or any exported field of a struct (or pointer to one) may satisfy T
func PortsOf[T any](m Module) (T, bool) {
	return find[T](m.Ports())
}

// MustPortsOf is PortsOf for bootstrap code that cannot continue without the port
func MustPortsOf[T any](m Module) T {
	if v, ok := PortsOf[T](m); ok {
		return v
	}
	var zero T
	panic(fmt.Sprintf("module %s: no port of type %T", m.Name(), &zero))
}

func find[T any](p any) (T, bool) {
	var zero T
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.Indirect(reflect.ValueOf(p))
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if f.Kind() == reflect.Interface && f.IsNil() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}
