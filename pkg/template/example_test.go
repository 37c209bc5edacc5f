package template_test

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/team-carepay/go-template-engine/pkg/template"
)

func ExampleTemplate_Execute() {
	tmpl := template.New("letter")
	err := tmpl.Parse("Hello{{ for .recipientData }}, {{ .firstName }}{{ end }}")
	if err != nil {
		log.Fatal(err)
	}
	data := map[string]interface{}{
		"recipientData": []map[string]interface{}{
			{"firstName": "John"},
			{"firstName": "Jane"},
		},
	}
	if err := tmpl.Execute(os.Stdout, data); err != nil {
		log.Fatal(err)
	}
	// Output: Hello, John, Jane
}

func ExampleTemplate_Execute_pipeline() {
	tmpl := template.New("mail")
	err := tmpl.Parse("Hello {{ .email | urlencode }}")
	if err != nil {
		log.Fatal(err)
	}
	data := map[string]interface{}{"email": "test+user@carepay.com"}
	if err := tmpl.Execute(os.Stdout, data); err != nil {
		log.Fatal(err)
	}
	// Output: Hello test%2Buser%40carepay.com
}

func ExampleTemplate_Execute_default() {
	tmpl := template.New("mail")
	err := tmpl.Parse(`Hello {{ .email | default "user@host.com" }}`)
	if err != nil {
		log.Fatal(err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, map[string]interface{}{}); err != nil {
		log.Fatal(err)
	}
	fmt.Println(out.String())

	out.Reset()
	data := map[string]interface{}{"email": "john@doe.com"}
	if err := tmpl.Execute(&out, data); err != nil {
		log.Fatal(err)
	}
	fmt.Println(out.String())
	// Output:
	// Hello user@host.com
	// Hello john@doe.com
}

func ExampleTemplate_AddFuncs() {
	funcs := template.NewFuncMap()
	funcs.Put("shout", func(s string) string { return strings.ToUpper(s) })

	tmpl := template.New("greeting")
	if err := tmpl.AddFuncs(funcs); err != nil {
		log.Fatal(err)
	}
	if err := tmpl.Parse("{{ .name | shout }}!"); err != nil {
		log.Fatal(err)
	}
	data := map[string]interface{}{"name": "hi"}
	if err := tmpl.Execute(os.Stdout, data); err != nil {
		log.Fatal(err)
	}
	// Output: HI!
}

func ExampleTemplate_ExecuteTemplate() {
	tmpl := template.New("pages")
	err := tmpl.Parse(`{{define "foo"}} FOO {{end}}{{define "bar"}} BAR {{end}}`)
	if err != nil {
		log.Fatal(err)
	}
	if err := tmpl.ExecuteTemplate(os.Stdout, "foo", nil); err != nil {
		log.Fatal(err)
	}
	if err := tmpl.ExecuteTemplate(os.Stdout, "bar", nil); err != nil {
		log.Fatal(err)
	}
	// Output:  FOO  BAR
}
