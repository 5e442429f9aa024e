package goutil

import (
	"reflect"
)

func String(s string) *string {
	return &s
}

func Uint32(ui uint32) *uint32 {
	return &ui
}

func Uint64(ui uint64) *uint64 {
	return &ui
}

func Float64(f float64) *float64 {
	return &f
}

func Int64(i int64) *int64 {
	return &i
}

func Bool(b bool) *bool {
	return &b
}

// StringOrNil returns nil for an empty string so optional columns stay NULL.
func StringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}
	switch reflect.TypeOf(i).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface, reflect.Func:
		return reflect.ValueOf(i).IsNil()
	default:
		return false
	}
}

func StringOrEmpty(s *string) string {
	if s != nil {
		return *s
	}
	return ""
}
