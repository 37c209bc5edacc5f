package template

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// newBuiltinFuncs creates the built-in function table. The table is
// fixed: user functions are registered in the template group instead.
func newBuiltinFuncs() *FuncMap {
	fm := NewFuncMap()
	mustPut := func(name string, fns ...interface{}) {
		if err := fm.Put(name, fns...); err != nil {
			panic(&InternalError{Message: fmt.Sprintf("registering builtin %q: %v", name, err)})
		}
	}

	mustPut("range", rangeStop, rangeStartStop, rangeStartStopStep)
	mustPut("index", builtinIndex)

	mustPut("print", builtinPrint)
	mustPut("println", builtinPrintln)
	mustPut("printf", builtinPrintf)

	mustPut("add", builtinAdd)
	mustPut("sub", builtinSub)
	mustPut("mul", builtinMul)
	mustPut("div", builtinDiv)
	mustPut("mod", builtinMod)

	mustPut("eq", builtinEqual)
	mustPut("ne", builtinNotEqual)
	mustPut("lt", builtinLessThan)
	mustPut("le", builtinLessThanOrEqual)
	mustPut("gt", builtinGreaterThan)
	mustPut("ge", builtinGreaterThanOrEqual)

	mustPut("or", builtinOr)
	mustPut("and", builtinAnd)
	mustPut("not", builtinNot)

	mustPut("urlencode", builtinURLEncode)
	mustPut("default", builtinDefault)

	return fm
}

// rangeStop generates the number sequence from 0 to stop.
func rangeStop(stop int) []int {
	return rangeStartStop(0, stop)
}

// rangeStartStop generates the number sequence from start to stop with
// step +1 when start < stop, -1 otherwise.
func rangeStartStop(start, stop int) []int {
	step := 1
	if start > stop {
		step = -1
	}
	seq, _ := rangeStartStopStep(start, stop, step)
	return seq
}

// rangeStartStopStep generates the number sequence from start to stop
// with the given step. A range that cannot progress yields the empty
// sequence; a zero step is an error.
func rangeStartStopStep(start, stop, step int) ([]int, error) {
	if step == 0 {
		return nil, errors.New("step must not be zero")
	}
	if stop == start || (start > stop && step > 0) || (start < stop && step < 0) {
		return nil, nil
	}
	diff := stop - start
	if diff < 0 {
		diff = -diff
	}
	abs := step
	if abs < 0 {
		abs = -abs
	}
	length := (diff + abs - 1) / abs
	seq := make([]int, length)
	n := start
	for i := range seq {
		seq[i] = n
		n += step
	}
	return seq, nil
}

// builtinIndex returns the result of indexing its first argument by the
// following arguments; e.g. "index x 1 2 3" returns x[1][2][3].
// Array-like containers index by integer, mapping-like containers by
// key equality.
func builtinIndex(item interface{}, indexes ...interface{}) (interface{}, error) {
	if item == nil {
		return nil, errors.New("the array/list must not be null")
	}
	v := reflect.ValueOf(item)
	for n, index := range indexes {
		last := n == len(indexes)-1
		elem, isNil := indirect(v)
		if isNil {
			return nil, fmt.Errorf("index of null value")
		}
		v = elem
		switch v.Kind() {
		case reflect.Array, reflect.Slice, reflect.String:
			i, ok := toInt(index)
			if !ok {
				return nil, fmt.Errorf("cannot index %s with %v", v.Type(), index)
			}
			if i < 0 || i >= int64(v.Len()) {
				return nil, fmt.Errorf("index out of range: %d", i)
			}
			v = v.Index(int(i))
		case reflect.Map:
			key := reflect.ValueOf(index)
			keyType := v.Type().Key()
			switch {
			case !key.IsValid():
				return nil, errors.New("cannot index with null key")
			case key.Type().AssignableTo(keyType):
			case isNumeric(index) && key.Type().ConvertibleTo(keyType):
				key = key.Convert(keyType)
			default:
				return nil, fmt.Errorf("cannot index %s with %v", v.Type(), index)
			}
			v = v.MapIndex(key)
			if !v.IsValid() {
				if last {
					return nil, nil
				}
				return nil, fmt.Errorf("index of null value")
			}
		default:
			return nil, fmt.Errorf("can't index object with type %s", v.Type())
		}
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// builtinPrint concatenates the textual renderings of its arguments.
// A single space is inserted between adjacent arguments only when the
// left-hand argument is not textual.
func builtinPrint(args ...interface{}) string {
	var sb strings.Builder
	for i, arg := range args {
		sb.WriteString(formatValue(arg))
		if i != len(args)-1 {
			if _, isString := arg.(string); !isString {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}

// builtinPrintln concatenates its arguments with a trailing space after
// every argument and a final newline.
func builtinPrintln(args ...interface{}) string {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(formatValue(arg))
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// builtinPrintf formats its arguments in classic C style.
func builtinPrintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// builtinAdd evaluates a + b. In addition to numbers, it concatenates
// two textual values.
func builtinAdd(a, b interface{}) (interface{}, error) { return arith(a, b, '+') }

// builtinSub evaluates a - b.
func builtinSub(a, b interface{}) (interface{}, error) { return arith(a, b, '-') }

// builtinMul evaluates a * b.
func builtinMul(a, b interface{}) (interface{}, error) { return arith(a, b, '*') }

// builtinDiv evaluates a / b.
func builtinDiv(a, b interface{}) (interface{}, error) { return arith(a, b, '/') }

// builtinMod evaluates a % b.
func builtinMod(a, b interface{}) (interface{}, error) { return arith(a, b, '%') }

// arith dispatches an arithmetic operator on the widest common numeric
// kind of its operands: integer when both are integers, floating-point
// otherwise.
func arith(a, b interface{}, op rune) (interface{}, error) {
	opErr := func() error {
		return fmt.Errorf("can't apply %c to the values %v (%T) and %v (%T)", op, a, a, b, b)
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok && op == '+' {
			return as + bs, nil
		}
		return nil, opErr()
	}
	if isIntKind(a) && isIntKind(b) {
		ai, _ := toInt(a)
		bi, _ := toInt(b)
		switch op {
		case '+':
			return ai + bi, nil
		case '-':
			return ai - bi, nil
		case '*':
			return ai * bi, nil
		case '/':
			if bi == 0 {
				return nil, errors.New("can't divide the value by 0")
			}
			return ai / bi, nil
		case '%':
			if bi == 0 {
				return nil, errors.New("can't modulo the value by 0")
			}
			return ai % bi, nil
		}
		return nil, opErr()
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, opErr()
	}
	switch op {
	case '+':
		return af + bf, nil
	case '-':
		return af - bf, nil
	case '*':
		return af * bf, nil
	case '/':
		if bf == 0 {
			return nil, errors.New("can't divide the value by 0")
		}
		return af / bf, nil
	}
	return nil, opErr()
}

// builtinEqual evaluates the comparison a == b1 || a == b2 || ...
// with numeric widening. At least one comparator is required.
func builtinEqual(first interface{}, rest ...interface{}) (bool, error) {
	if len(rest) == 0 {
		return false, errors.New("can't equal only one argument")
	}
	for _, arg := range rest {
		if equalValues(first, arg) {
			return true, nil
		}
	}
	return false, nil
}

// builtinNotEqual evaluates the comparison a != b.
func builtinNotEqual(a, b interface{}) bool {
	return !equalValues(a, b)
}

// builtinLessThan evaluates the comparison a < b.
func builtinLessThan(a, b interface{}) (bool, error) { return compare(a, b, "<") }

// builtinLessThanOrEqual evaluates the comparison a <= b.
func builtinLessThanOrEqual(a, b interface{}) (bool, error) { return compare(a, b, "<=") }

// builtinGreaterThan evaluates the comparison a > b.
func builtinGreaterThan(a, b interface{}) (bool, error) { return compare(a, b, ">") }

// builtinGreaterThanOrEqual evaluates the comparison a >= b.
func builtinGreaterThanOrEqual(a, b interface{}) (bool, error) { return compare(a, b, ">=") }

// compare dispatches an ordering operator on the widest common numeric
// kind of its operands. Character constants compare by code point.
func compare(a, b interface{}, op string) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("can't apply %s to the values %v (%T) and %v (%T)", op, a, a, b, b)
	}
	switch op {
	case "<":
		return af < bf, nil
	case ">":
		return af > bf, nil
	case "<=":
		return af <= bf, nil
	case ">=":
		return af >= bf, nil
	}
	return false, fmt.Errorf("no such comparison %s", op)
}

// builtinNot returns the boolean negation of its argument.
func builtinNot(a interface{}) bool {
	return !isTrue(a)
}

// builtinAnd computes the boolean AND of its arguments, returning the
// first falsy argument it encounters, or the last argument.
func builtinAnd(first interface{}, rest ...interface{}) interface{} {
	if !isTrue(first) {
		return first
	}
	for _, arg := range rest {
		first = arg
		if !isTrue(first) {
			break
		}
	}
	return first
}

// builtinOr computes the boolean OR of its arguments, returning the
// first truthy argument it encounters, or the last argument.
func builtinOr(first interface{}, rest ...interface{}) interface{} {
	if isTrue(first) {
		return first
	}
	for _, arg := range rest {
		first = arg
		if isTrue(first) {
			break
		}
	}
	return first
}

// builtinURLEncode percent-encodes the textual rendering of its
// argument as UTF-8.
func builtinURLEncode(arg interface{}) string {
	if isNull(arg) {
		return ""
	}
	return url.QueryEscape(formatValue(arg))
}

// builtinDefault returns v when it is truthy, else the textual
// rendering of the fallback. The pipeline form
// {{ .x | default "fallback" }} supplies v as the piped final value.
func builtinDefault(fallback, v interface{}) interface{} {
	if isTrue(v) {
		return v
	}
	return formatValue(fallback)
}
