package store

import "reflect"

// Cloner lets a value type supply its own deep copy. Stores use it instead
// of the reflection copier, which matters for types with unexported
// reference fields.
//
// Example:
//
//	func (c Cart) Clone() Cart {
//	    out := c
//	    out.Items = append([]Item(nil), c.Items...)
//	    return out
//	}
type Cloner[T any] interface {
	Clone() T
}

// Clone returns a deep copy of v.
//
// Values implementing Cloner[T] copy themselves. Everything else goes
// through a reflection copy that duplicates maps, slices, arrays, pointers
// and the exported fields of structs, preserving aliasing and cycles.
// Unexported struct fields are copied by value, so reference types held in
// them stay shared. Funcs, chans and unsafe pointers pass through by reference.
func Clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}

	src := reflect.ValueOf(&v).Elem()
	c := copier{seen: make(map[seenKey]reflect.Value)}
	out := reflect.New(src.Type())
	out.Elem().Set(c.copy(src))
	return *out.Interface().(*T)
}

type seenKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type copier struct {
	seen map[seenKey]reflect.Value
}

func (c *copier) copy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		key := seenKey{ptr: v.Pointer(), typ: v.Type()}
		if dup, ok := c.seen[key]; ok {
			return dup
		}
		dup := reflect.New(v.Type().Elem())
		c.seen[key] = dup
		dup.Elem().Set(c.copy(v.Elem()))
		return dup

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		key := seenKey{ptr: v.Pointer(), typ: v.Type()}
		if dup, ok := c.seen[key]; ok {
			return dup
		}
		dup := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = dup
		iter := v.MapRange()
		for iter.Next() {
			dup.SetMapIndex(c.copy(iter.Key()), c.copy(iter.Value()))
		}
		return dup

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		key := seenKey{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
		if dup, ok := c.seen[key]; ok {
			return dup
		}
		dup := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = dup
		for i := 0; i < v.Len(); i++ {
			dup.Index(i).Set(c.copy(v.Index(i)))
		}
		return dup

	case reflect.Array:
		dup := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			dup.Index(i).Set(c.copy(v.Index(i)))
		}
		return dup

	case reflect.Struct:
		dup := reflect.New(v.Type()).Elem()
		dup.Set(v)
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			dup.Field(i).Set(c.copy(v.Field(i)))
		}
		return dup

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		dup := reflect.New(v.Type()).Elem()
		dup.Set(c.copy(v.Elem()))
		return dup

	default:
		return v
	}
}
