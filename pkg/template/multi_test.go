package template

import (
	"bytes"
	"strings"
	"testing"
)

// Tests for multiple-template parsing and execution.

func TestMultiParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		names   []string
		results []string
	}{
		{"empty", "", false, nil, nil},
		{"one", `{{define "foo"}} FOO {{end}}`, false,
			[]string{"foo"}, []string{" FOO "}},
		{"two", `{{define "foo"}} FOO {{end}}{{define "bar"}} BAR {{end}}`, false,
			[]string{"foo", "bar"}, []string{" FOO ", " BAR "}},
		{"define with body around", `text{{define "foo"}}FOO{{end}}more`, false,
			[]string{"foo"}, []string{"FOO"}},
		// Errors.
		{"missing end", `{{define "foo"}} FOO `, true, nil, nil},
		{"malformed name", `{{define "foo}} FOO `, true, nil, nil},
		{"name not string", `{{define foo}} FOO {{end}}`, true, nil, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tmpl := New(test.name)
			err := tmpl.Parse(test.input)
			if test.wantErr {
				if err == nil {
					t.Fatalf("%q: expected error; got none", test.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", test.input, err)
			}
			for i, name := range test.names {
				sub := tmpl.Lookup(name)
				if sub == nil {
					t.Fatalf("%q: can't find template %q", test.input, name)
				}
				if got := sub.Tree.Root.String(); got != test.results[i] {
					t.Errorf("%q: template %q renders %q, want %q", test.input, name, got, test.results[i])
				}
			}
		})
	}
}

// A later empty definition must not replace a prior non-empty one.
func TestEmptyDefinitionPreserved(t *testing.T) {
	tmpl := New("root")
	if err := tmpl.Parse(`{{define "x"}}content{{end}}`); err != nil {
		t.Fatal(err)
	}
	if err := tmpl.Parse(`{{define "x"}}  {{end}}`); err != nil {
		t.Fatal(err)
	}
	sub := tmpl.Lookup("x")
	if sub == nil {
		t.Fatal("template x disappeared")
	}
	if got := sub.Tree.Root.String(); got != "content" {
		t.Errorf("empty redefinition replaced the body: got %q", got)
	}

	// A non-empty redefinition in a later Parse call does replace it.
	if err := tmpl.Parse(`{{define "x"}}new{{end}}`); err != nil {
		t.Fatal(err)
	}
	if got := tmpl.Lookup("x").Tree.Root.String(); got != "new" {
		t.Errorf("redefinition did not replace the body: got %q", got)
	}
}

func TestTemplates(t *testing.T) {
	tmpl := New("root")
	err := tmpl.Parse(`body{{define "a"}}A{{end}}{{define "b"}}B{{end}}`)
	if err != nil {
		t.Fatal(err)
	}
	all := tmpl.Templates()
	if len(all) != 3 { // root, a, b
		t.Fatalf("got %d templates, want 3", len(all))
	}
	names := map[string]bool{}
	for _, sub := range all {
		names[sub.Name()] = true
	}
	for _, want := range []string{"root", "a", "b"} {
		if !names[want] {
			t.Errorf("missing template %q in %v", want, names)
		}
	}
	if tmpl.Lookup("nope") != nil {
		t.Error("Lookup of unknown name should return nil")
	}
}

func TestAssociatedTemplatesShareGroup(t *testing.T) {
	root := New("root")
	if err := root.Parse(`calling: {{template "helper" .}}`); err != nil {
		t.Fatal(err)
	}
	helper := NewAssociated("helper", root)
	if err := helper.Parse(`[{{.}}]`); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := root.Execute(&buf, "data"); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "calling: [data]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseInputs(t *testing.T) {
	tmpl, err := ParseInputs(nil, map[string]string{
		"a": `A says {{template "b"}}`,
		"b": "B",
	})
	if err != nil {
		t.Fatal(err)
	}
	// "a" is first in sorted key order and becomes the root.
	if tmpl.Name() != "a" {
		t.Errorf("root template is %q, want %q", tmpl.Name(), "a")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "A says B"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := ParseInputs(nil, nil); err == nil {
		t.Error("expected error for empty inputs")
	}
}

func TestParseInputsWithFuncs(t *testing.T) {
	fm := NewFuncMap()
	fm.Put("shout", func(s string) string { return strings.ToUpper(s) })
	tmpl, err := ParseInputs(fm, map[string]string{
		"main": `{{shout .}}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, "quiet"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "QUIET" {
		t.Errorf("got %q, want %q", got, "QUIET")
	}
}

func TestSetDelimsRevert(t *testing.T) {
	tmpl := New("d")
	tmpl.SetDelims("<<", ">>")
	tmpl.SetDelims("", "") // reverts to the defaults
	if err := tmpl.Parse("{{.}}"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, "ok"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}

func TestAddParseTree(t *testing.T) {
	tmpl := New("root")
	trees, err := Parse("extra", "EXTRA", "", "", builtins())
	if err != nil {
		t.Fatal(err)
	}
	if err := tmpl.AddParseTree("extra", trees["extra"]); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "extra", nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "EXTRA" {
		t.Errorf("got %q, want %q", got, "EXTRA")
	}
}
