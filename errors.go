package lwcache

import (
	"fmt"
	"reflect"
)

// ArgumentError reports a rejected argument, e.g. a nil key or value. It is
// returned before any store or loader/writer interaction takes place.
type ArgumentError struct {
	Name string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s must not be nil", e.Name)
}

// isNil reports whether v is nil for the kinds that have a nil. Zero values of
// non-nilable kinds (0, "", struct{}{}) are legitimate keys and values.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func checkKey[K comparable](key K) error {
	if isNil(key) {
		return &ArgumentError{Name: "key"}
	}
	return nil
}

func checkValue[V any](value V) error {
	if isNil(value) {
		return &ArgumentError{Name: "value"}
	}
	return nil
}
