// Package ptrx provides pointer helpers for nullable persistence fields.
package ptrx

import "time"

// String returns a pointer to the string value passed in.
func String(v string) *string { return &v }

// StringOrNil returns nil for the empty string, a pointer otherwise.
func StringOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Bool returns a pointer to the bool value passed in.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to the int value passed in.
func Int(v int) *int { return &v }

// Time returns a pointer to the time value passed in.
func Time(v time.Time) *time.Time { return &v }

// Deref returns the value behind p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
