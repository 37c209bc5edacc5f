package template

import (
	"reflect"
	"strings"
	"testing"
)

func TestRange(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		stop    int
		step    int
		want    []int
		wantErr bool
	}{
		{"ascending", 0, 5, 1, []int{0, 1, 2, 3, 4}, false},
		{"descending", 5, 0, -1, []int{5, 4, 3, 2, 1}, false},
		{"step two", 0, 5, 2, []int{0, 2, 4}, false},
		{"empty", 3, 3, 1, nil, false},
		{"cannot progress up", 5, 0, 1, nil, false},
		{"cannot progress down", 0, 5, -1, nil, false},
		{"zero step", 0, 5, 0, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := rangeStartStopStep(test.start, test.stop, test.step)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}

	if got := rangeStop(3); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("rangeStop(3) = %v", got)
	}
	if got := rangeStartStop(3, 0); !reflect.DeepEqual(got, []int{3, 2, 1}) {
		t.Errorf("rangeStartStop(3, 0) = %v (default step should be -1)", got)
	}
}

func TestIndex(t *testing.T) {
	nested := map[string]interface{}{
		"rows": []interface{}{
			[]int{10, 20},
			[]int{30, 40},
		},
	}
	tests := []struct {
		name    string
		item    interface{}
		indexes []interface{}
		want    interface{}
		wantErr bool
	}{
		{"slice", []int{1, 2, 3}, []interface{}{1}, 2, false},
		{"map", map[string]int{"a": 1}, []interface{}{"a"}, 1, false},
		{"missing map key", map[string]int{"a": 1}, []interface{}{"b"}, nil, false},
		{"nested", nested, []interface{}{"rows", 1, 0}, 30, false},
		{"no indexes", []int{1}, nil, []int{1}, false},
		{"out of range", []int{1}, []interface{}{5}, nil, true},
		{"negative", []int{1}, []interface{}{-1}, nil, true},
		{"null item", nil, []interface{}{0}, nil, true},
		{"unindexable", 42, []interface{}{0}, nil, true},
		{"bad key type", []int{1}, []interface{}{"x"}, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := builtinIndex(test.item, test.indexes...)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestPrintFunctions(t *testing.T) {
	// Spaces are inserted only after non-textual arguments.
	if got, want := builtinPrint("a", "b"), "ab"; got != want {
		t.Errorf("print strings: got %q, want %q", got, want)
	}
	if got, want := builtinPrint(1, 2), "1 2"; got != want {
		t.Errorf("print ints: got %q, want %q", got, want)
	}
	if got, want := builtinPrint(1, "a", 2), "1 a2"; got != want {
		t.Errorf("print mixed: got %q, want %q", got, want)
	}
	if got, want := builtinPrintln(1, "a"), "1 a \n"; got != want {
		t.Errorf("println: got %q, want %q", got, want)
	}
	if got, want := builtinPrintf("%02d/%s", 7, "x"), "07/x"; got != want {
		t.Errorf("printf: got %q, want %q", got, want)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(a, b interface{}) (interface{}, error)
		a, b    interface{}
		want    interface{}
		wantErr bool
	}{
		{"add ints", builtinAdd, 2, 3, int64(5), false},
		{"add floats", builtinAdd, 1.5, 2.0, 3.5, false},
		{"add mixed", builtinAdd, 2, 0.5, 2.5, false},
		{"add strings", builtinAdd, "foo", "bar", "foobar", false},
		{"add string and int", builtinAdd, "foo", 1, nil, true},
		{"sub", builtinSub, 5, 3, int64(2), false},
		{"mul", builtinMul, 4, 3, int64(12), false},
		{"div", builtinDiv, 7, 2, int64(3), false},
		{"div floats", builtinDiv, 7.0, 2.0, 3.5, false},
		{"div by zero", builtinDiv, 1, 0, nil, true},
		{"div float zero", builtinDiv, 1.0, 0.0, nil, true},
		{"mod", builtinMod, 7, 3, int64(1), false},
		{"mod by zero", builtinMod, 1, 0, nil, true},
		{"mod floats rejected", builtinMod, 7.5, 2.0, nil, true},
		{"add bool rejected", builtinAdd, true, 1, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.fn(test.a, test.b)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, test.want, test.want)
			}
		})
	}
}

func TestComparisons(t *testing.T) {
	if got, _ := builtinEqual(1, 2, 3, 1); !got {
		t.Error("eq should be true when any comparator matches")
	}
	if got, _ := builtinEqual(1, 2, 3); got {
		t.Error("eq should be false when no comparator matches")
	}
	if _, err := builtinEqual(1); err == nil {
		t.Error("eq requires at least one comparator")
	}
	if got, _ := builtinEqual(1, 1.0); !got {
		t.Error("eq should widen numerics")
	}
	if !builtinNotEqual(1, 2) || builtinNotEqual("a", "a") {
		t.Error("ne misbehaves")
	}

	if got, _ := builtinLessThan(1, 2); !got {
		t.Error("lt(1, 2) should be true")
	}
	if got, _ := builtinLessThan('a', 'b'); !got {
		t.Error("lt should compare character codes")
	}
	if got, _ := builtinGreaterThanOrEqual(2, 2); !got {
		t.Error("ge(2, 2) should be true")
	}
	if _, err := builtinLessThan("a", 1); err == nil {
		t.Error("lt should reject non-numeric operands")
	}
}

func TestLogicFunctions(t *testing.T) {
	if got := builtinAnd(true, 0, 3); got != 0 {
		t.Errorf("and returned %v, want first falsy argument 0", got)
	}
	if got := builtinAnd(1, 2, 3); got != 3 {
		t.Errorf("and returned %v, want last argument 3", got)
	}
	if got := builtinOr(false, "", "x"); got != "x" {
		t.Errorf("or returned %v, want first truthy argument", got)
	}
	if got := builtinOr(2, 3); got != 2 {
		t.Errorf("or returned %v, want first truthy argument 2", got)
	}
	if builtinNot(1) || !builtinNot(nil) || !builtinNot(0) {
		t.Error("not misbehaves")
	}
}

func TestURLEncode(t *testing.T) {
	if got, want := builtinURLEncode("test+user@carepay.com"), "test%2Buser%40carepay.com"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := builtinURLEncode(nil); got != "" {
		t.Errorf("urlencode(null) = %q, want empty", got)
	}
	if got, want := builtinURLEncode(42), "42"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefault(t *testing.T) {
	if got := builtinDefault("fallback", "value"); got != "value" {
		t.Errorf("got %v, want piped value", got)
	}
	if got := builtinDefault("fallback", nil); got != "fallback" {
		t.Errorf("got %v, want fallback", got)
	}
	if got := builtinDefault("fallback", ""); got != "fallback" {
		t.Errorf("got %v, want fallback for empty string", got)
	}
	if got := builtinDefault(7, nil); got != "7" {
		t.Errorf("got %v, want textual rendering of fallback", got)
	}
}

func TestTruthiness(t *testing.T) {
	truthy := []interface{}{true, 1, 0.5, "x", []int{1}, map[string]int{"a": 1}, struct{}{}}
	falsy := []interface{}{nil, false, 0, -1, -0.5, "", []int{}, map[string]int{}, (*execT)(nil)}
	for _, v := range truthy {
		if !isTrue(v) {
			t.Errorf("%v (%T) should be truthy", v, v)
		}
	}
	for _, v := range falsy {
		if isTrue(v) {
			t.Errorf("%v (%T) should be falsy", v, v)
		}
	}
}

func TestFuncMap(t *testing.T) {
	fm := NewFuncMap()
	if err := fm.Put("f", func() int { return 1 }); err != nil {
		t.Fatal(err)
	}
	if err := fm.Put("f", func(s string) string { return s }); err != nil {
		t.Fatal(err)
	}
	if !fm.Contains("f") || fm.Contains("g") {
		t.Error("Contains misbehaves")
	}
	if n := len(fm.overloads("f")); n != 2 {
		t.Errorf("overload count = %d, want 2", n)
	}
	if err := fm.Put("bad", 42); err == nil {
		t.Error("Put should reject non-functions")
	}
	if err := fm.Put(""); err == nil {
		t.Error("Put should reject empty names")
	}
	if err := fm.PutAll(map[string]interface{}{"g": func() int { return 2 }}); err != nil {
		t.Fatal(err)
	}
	names := fm.Names()
	if len(names) != 2 {
		t.Errorf("names = %v, want f and g", names)
	}

	// Builtins are present and immutable by way of a separate table.
	for _, name := range []string{"range", "index", "print", "println", "printf",
		"add", "sub", "mul", "div", "mod", "eq", "ne", "lt", "le", "gt", "ge",
		"and", "or", "not", "urlencode", "default"} {
		if !builtins().Contains(name) {
			t.Errorf("builtin %q missing", name)
		}
	}
}

func TestCallOverloadErrorsAggregated(t *testing.T) {
	tmpl := New("agg")
	fm := NewFuncMap()
	fm.Put("weird",
		func(a int) string { return "int" },
		func() {}, // void; skipped with an explanation
	)
	if err := tmpl.AddFuncs(fm); err != nil {
		t.Fatal(err)
	}
	if err := tmpl.Parse(`{{weird "s"}}`); err != nil {
		t.Fatal(err)
	}
	err := tmpl.Execute(&strings.Builder{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "error calling weird:") {
		t.Errorf("error %q does not name the function", msg)
	}
	if !strings.Contains(msg, "void return type") {
		t.Errorf("error %q does not explain the void overload", msg)
	}
}

func TestCallNullToPrimitive(t *testing.T) {
	tmpl := New("np")
	fm := NewFuncMap()
	fm.Put("wantsInt", func(a int) int { return a })
	if err := tmpl.AddFuncs(fm); err != nil {
		t.Fatal(err)
	}
	if err := tmpl.Parse("{{wantsInt null}}"); err != nil {
		t.Fatal(err)
	}
	err := tmpl.Execute(&strings.Builder{}, nil)
	if err == nil || !strings.Contains(err.Error(), "assign null to primitive type") {
		t.Errorf("got %v, want null-to-primitive error", err)
	}
}
