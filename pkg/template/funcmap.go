package template

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// FuncMap maps user-visible names to ordered overload sets of
// functions. A name may be registered more than once; the executor
// tries the overloads in registration order and keeps the first
// successful result.
//
// Each function must return one value, or one value and an error.
// Functions returning nothing are rejected when called.
type FuncMap struct {
	m map[string][]*funcDescriptor
}

// funcDescriptor records one callable overload.
type funcDescriptor struct {
	fn  reflect.Value
	typ reflect.Type
}

func (d *funcDescriptor) String() string {
	return d.typ.String()
}

// NewFuncMap creates an empty function map.
func NewFuncMap() *FuncMap {
	return &FuncMap{m: make(map[string][]*funcDescriptor)}
}

// Put registers one or more functions as overloads of name, in order.
func (fm *FuncMap) Put(name string, fns ...interface{}) error {
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if len(fns) == 0 {
		return fmt.Errorf("no functions given for %q", name)
	}
	if fm.m == nil {
		fm.m = make(map[string][]*funcDescriptor)
	}
	for _, fn := range fns {
		v := reflect.ValueOf(fn)
		if !v.IsValid() || v.Kind() != reflect.Func {
			return fmt.Errorf("value for %q is not a function", name)
		}
		fm.m[name] = append(fm.m[name], &funcDescriptor{fn: v, typ: v.Type()})
	}
	return nil
}

// PutAll registers every entry of funcs; each value must be a function.
func (fm *FuncMap) PutAll(funcs map[string]interface{}) error {
	for name, fn := range funcs {
		if err := fm.Put(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether a function with the given name is registered.
func (fm *FuncMap) Contains(name string) bool {
	if fm == nil || fm.m == nil {
		return false
	}
	_, ok := fm.m[name]
	return ok
}

// Names returns the registered function names.
func (fm *FuncMap) Names() []string {
	names := make([]string, 0, len(fm.m))
	for name := range fm.m {
		names = append(names, name)
	}
	return names
}

// overloads returns the overload set for name, or nil.
func (fm *FuncMap) overloads(name string) []*funcDescriptor {
	if fm == nil || fm.m == nil {
		return nil
	}
	return fm.m[name]
}

// merge appends every overload of src into fm.
func (fm *FuncMap) merge(src *FuncMap) {
	if src == nil {
		return
	}
	for name, descs := range src.m {
		fm.m[name] = append(fm.m[name], descs...)
	}
}

var (
	builtinFuncs *FuncMap
	builtinOnce  sync.Once
)

// builtins returns the immutable built-in function table, initialising
// it on first use.
func builtins() *FuncMap {
	builtinOnce.Do(func() {
		builtinFuncs = newBuiltinFuncs()
	})
	return builtinFuncs
}

// BuiltinNames returns the names of the built-in functions, sorted.
func BuiltinNames() []string {
	names := builtins().Names()
	sort.Strings(names)
	return names
}
