package compare

import (
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Equal reports whether a and b are equal under opts.
// It never panics, whatever the dynamic types involved.
func Equal(a, b any, opts Options) bool {
	switch opts.Strategy {
	case Custom:
		if opts.Comparator != nil {
			return opts.Comparator(a, b)
		}
		return refEqual(reflect.ValueOf(a), reflect.ValueOf(b))
	case Shallow:
		return shallowEqual(reflect.ValueOf(a), reflect.ValueOf(b), opts.ignoreSet())
	case Deep:
		c := &deepComparer{
			maxDepth: opts.MaxDepth,
			ignore:   opts.ignoreSet(),
			visited:  make(map[visit]bool),
		}
		return c.equal(reflect.ValueOf(a), reflect.ValueOf(b), 0)
	default:
		return refEqual(reflect.ValueOf(a), reflect.ValueOf(b))
	}
}

// refEqual is identity comparison. Containers are equal only when they share
// backing storage; structs and arrays compare member-wise by identity.
func refEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Map, reflect.Slice:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return refEqual(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !refEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !refEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(a, b)
	}
}

// scalarEqual compares basic kinds without calling Interface, so it also
// works on values read from unexported fields.
func scalarEqual(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() == b.Float()
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	}
	return false
}

func shallowEqual(a, b reflect.Value, ignore map[string]struct{}) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	// A pointer at the top level is "the object"; look through it once.
	if a.Kind() == reflect.Pointer {
		if a.Pointer() == b.Pointer() {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		a, b = a.Elem(), b.Elem()
	}
	if a.Kind() == reflect.Interface {
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return shallowEqual(a.Elem(), b.Elem(), ignore)
	}

	switch a.Kind() {
	case reflect.Struct:
		return structEqual(a, b, ignore, refEqual)
	case reflect.Map:
		return mapEqual(a, b, ignore, refEqual)
	case reflect.Slice:
		if a.IsNil() != b.IsNil() {
			return false
		}
		return elementsEqual(a, b, refEqual)
	case reflect.Array:
		return elementsEqual(a, b, refEqual)
	default:
		return refEqual(a, b)
	}
}

type visit struct {
	a, b   uintptr
	na, nb int
	typ    reflect.Type
}

type deepComparer struct {
	maxDepth int
	ignore   map[string]struct{}
	visited  map[visit]bool
}

func (c *deepComparer) equal(a, b reflect.Value, depth int) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	if c.maxDepth > 0 && depth >= c.maxDepth {
		return refEqual(a, b)
	}

	// Cycle guard: a pair already under comparison is assumed equal.
	switch a.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		if !a.IsNil() && !b.IsNil() {
			v := visit{a: a.Pointer(), b: b.Pointer(), typ: a.Type()}
			if a.Kind() == reflect.Slice {
				v.na, v.nb = a.Len(), b.Len()
			}
			if c.visited[v] {
				return true
			}
			c.visited[v] = true
		}
	}

	next := func(x, y reflect.Value) bool { return c.equal(x, y, depth+1) }

	switch a.Kind() {
	case reflect.Pointer:
		if a.Pointer() == b.Pointer() {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		return c.equal(a.Elem(), b.Elem(), depth)
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return c.equal(a.Elem(), b.Elem(), depth)
	case reflect.Struct:
		if a.Type() == timeType && a.CanInterface() {
			return a.Interface().(time.Time).Equal(b.Interface().(time.Time))
		}
		return structEqual(a, b, c.ignore, next)
	case reflect.Map:
		return mapEqual(a, b, c.ignore, next)
	case reflect.Slice:
		if a.IsNil() != b.IsNil() {
			return false
		}
		if a.Pointer() == b.Pointer() && a.Len() == b.Len() {
			return true
		}
		return elementsEqual(a, b, next)
	case reflect.Array:
		return elementsEqual(a, b, next)
	default:
		return refEqual(a, b)
	}
}

func structEqual(a, b reflect.Value, ignore map[string]struct{}, eq func(x, y reflect.Value) bool) bool {
	t := a.Type()
	for i := 0; i < a.NumField(); i++ {
		if ignoredField(t.Field(i), ignore) {
			continue
		}
		if !eq(a.Field(i), b.Field(i)) {
			return false
		}
	}
	return true
}

func mapEqual(a, b reflect.Value, ignore map[string]struct{}, eq func(x, y reflect.Value) bool) bool {
	if a.IsNil() != b.IsNil() {
		return false
	}
	stringKeys := a.Type().Key().Kind() == reflect.String

	count := 0
	iter := a.MapRange()
	for iter.Next() {
		k := iter.Key()
		if stringKeys && ignored(k.String(), ignore) {
			continue
		}
		count++
		bv := b.MapIndex(k)
		if !bv.IsValid() || !eq(iter.Value(), bv) {
			return false
		}
	}

	other := 0
	iter = b.MapRange()
	for iter.Next() {
		if stringKeys && ignored(iter.Key().String(), ignore) {
			continue
		}
		other++
	}
	return count == other
}

func elementsEqual(a, b reflect.Value, eq func(x, y reflect.Value) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !eq(a.Index(i), b.Index(i)) {
			return false
		}
	}
	return true
}

func ignored(key string, ignore map[string]struct{}) bool {
	if ignore == nil {
		return false
	}
	_, ok := ignore[key]
	return ok
}

func ignoredField(f reflect.StructField, ignore map[string]struct{}) bool {
	if ignore == nil {
		return false
	}
	if ignored(f.Name, ignore) {
		return true
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		return name != "" && name != "-" && ignored(name, ignore)
	}
	return false
}
