package ring

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Unexported fields take part in comparison too.
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Equal compares two elements the way Locate does.
//
// Strict equality requires the same dynamic type and a deeply equal value.
// Loose equality additionally treats numbers of any kind, and strings that
// spell a number, as equal when they hold the same numeric value, so int64(5),
// 5.0 and "5" all match. Integers are compared exactly, never through a
// float.
func Equal[T any](a, b T, strict bool) bool {
	if !strict {
		if x, ok := number(a); ok {
			if y, ok := number(b); ok {
				return x.equal(y)
			}
		}
	}
	return cmp.Equal(a, b, exportAll)
}

type numKind int

const (
	signed numKind = iota
	unsigned
	float
)

type numeric struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

func number(v any) (numeric, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numeric{kind: signed, i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return numeric{kind: unsigned, u: rv.Uint()}, true
	case reflect.Float32, reflect.Float64:
		return numeric{kind: float, f: rv.Float()}, true
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return numeric{kind: signed, i: i}, true
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return numeric{kind: unsigned, u: u}, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numeric{kind: float, f: f}, true
		}
	}
	return numeric{}, false
}

func (x numeric) equal(y numeric) bool {
	if x.kind > y.kind {
		x, y = y, x
	}
	switch {
	case x.kind == signed && y.kind == signed:
		return x.i == y.i
	case x.kind == unsigned && y.kind == unsigned:
		return x.u == y.u
	case x.kind == float && y.kind == float:
		return x.f == y.f
	case x.kind == signed && y.kind == unsigned:
		return x.i >= 0 && uint64(x.i) == y.u
	case x.kind == signed && y.kind == float:
		// -2^63 and 2^63 bound the floats that convert to int64 exactly.
		return y.f == math.Trunc(y.f) && y.f >= -(1<<63) && y.f < 1<<63 && int64(y.f) == x.i
	default:
		return y.f == math.Trunc(y.f) && y.f >= 0 && y.f < 1<<64 && uint64(y.f) == x.u
	}
}
