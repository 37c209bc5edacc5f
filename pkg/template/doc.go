// Package template implements data-driven templates for generating
// textual output.
//
// A template interleaves literal text with actions — expressions and
// control constructs delimited by "{{" and "}}" — that are evaluated
// against a caller-supplied data value:
//
//	tmpl := template.New("letter")
//	err := tmpl.Parse("Hello{{ for .recipientData }}, {{ .firstName }}{{ end }}")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data := map[string]interface{}{
//	    "recipientData": []map[string]interface{}{
//	        {"firstName": "John"},
//	        {"firstName": "Jane"},
//	    },
//	}
//	err = tmpl.Execute(os.Stdout, data)
//	// Output: Hello, John, Jane
//
// Template syntax:
//
// Fields: {{.name}}, {{.customer.address}} — resolved against the
// current data value (the "dot") by map key, readable property, method
// or public field. Arrays and slices expose a length pseudo-field.
//
// Variables: {{$x := .value}} declares, {{$x = .other}} assigns;
// variables declared inside {{if}}, {{for}} or {{with}} bodies go out
// of scope at the closing {{end}}. $ names the data value the executing
// template was given: the root data value, or the value passed to a
// {{template}} invocation.
//
// Pipelines: {{.email | urlencode}} — the result of each stage is
// appended as the final argument of the next.
//
// Conditionals: {{if .ok}}...{{else if .retry}}...{{else}}...{{end}}
//
// Loops: {{for .items}}...{{else}}empty{{end}}, with {{break}} and
// {{continue}}. Mappings iterate their values in key order.
//
// With: {{with .account}}...{{end}} — sets dot inside the body.
//
// Template invocation: {{define "header"}}...{{end}} defines a named
// template in the group; {{template "header" .}} invokes it.
//
// Functions: a fixed built-in library (range, index, print, println,
// printf, add, sub, mul, div, mod, eq, ne, lt, le, gt, ge, and, or,
// not, urlencode, default) plus user functions registered with
// AddFuncs; user functions shadow built-ins of the same name, and a
// name may carry several overloads tried in registration order.
//
// Comments {{/* like this */}} are stripped. Delimiters can be changed
// per template with SetDelims.
//
// Concurrency: a template group may be executed from multiple
// goroutines once parsing and function registration are complete;
// mutating the group (Parse, AddFuncs) concurrently with Execute is
// not safe.
package template
