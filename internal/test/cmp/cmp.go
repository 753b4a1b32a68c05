// Package cmp wraps github.com/google/go-cmp/cmp with the options this
// module's tests need: unexported fields exported for comparison and
// errors compared with errors.Is instead of struct equality.
package cmp

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func options() cmp.Options {
	return cmp.Options{
		cmpopts.EquateErrors(),
		cmp.Exporter(func(reflect.Type) bool { return true }),
	}
}

// Equal reports whether x and y are equal under the above options.
func Equal(x, y interface{}) bool {
	return cmp.Equal(x, y, options())
}

// Diff returns a human readable report of the differences between x and y,
// or the empty string if they're equal.
func Diff(x, y interface{}) string {
	return cmp.Diff(x, y, options())
}
