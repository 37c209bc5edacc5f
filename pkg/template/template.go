package template

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Template is the representation of a parsed template. It is a named
// handle over a parse tree plus a reference to the group of templates
// it can invoke with the {{template}} action.
type Template struct {
	name       string
	common     *common
	Tree       *Tree
	leftDelim  string
	rightDelim string
}

// common holds the information shared by related templates.
type common struct {
	mu    sync.Mutex // protects funcs
	tmpl  map[string]*Template
	funcs *FuncMap
}

// New allocates a new, undefined template with the given name and a
// fresh group.
func New(name string) *Template {
	return &Template{
		name: name,
		common: &common{
			tmpl:  make(map[string]*Template),
			funcs: NewFuncMap(),
		},
	}
}

// NewAssociated allocates a new, undefined template associated with the
// given one and with the same delimiters. The association allows one
// template to invoke another with a {{template}} action.
func NewAssociated(name string, parent *Template) *Template {
	return &Template{
		name:       name,
		common:     parent.common,
		leftDelim:  parent.leftDelim,
		rightDelim: parent.rightDelim,
	}
}

// Name returns the name of the template.
func (t *Template) Name() string {
	return t.name
}

// SetDelims sets the action delimiters to the specified strings, to be
// used in subsequent calls to Parse. An empty delimiter stands for the
// corresponding default ("{{" or "}}").
func (t *Template) SetDelims(left, right string) *Template {
	t.leftDelim = left
	t.rightDelim = right
	return t
}

// AddFuncs merges the given function map into the template group's
// user registry. User functions shadow built-ins of the same name.
func (t *Template) AddFuncs(funcs *FuncMap) error {
	if funcs == nil {
		return errors.New("nil function map")
	}
	t.common.mu.Lock()
	defer t.common.mu.Unlock()
	t.common.funcs.merge(funcs)
	return nil
}

// findFunc returns the overload set for the named function, preferring
// the group's user registry over the built-in table.
func (t *Template) findFunc(name string) []*funcDescriptor {
	t.common.mu.Lock()
	descs := t.common.funcs.overloads(name)
	t.common.mu.Unlock()
	if descs != nil {
		return descs
	}
	return builtins().overloads(name)
}

// Parse parses text as a template body for t. Named template
// definitions ({{define ...}}) in the text define additional templates
// associated with t. Templates can be redefined in successive calls to
// Parse; a definition whose body contains only white space is
// considered empty and will not replace an existing template's body.
func (t *Template) Parse(text string) error {
	if logger := GetLogger(); logger.IsDebugMode() {
		logger.WithFields(Fields{"template": t.name, "length": len(text)}).Debug("parsing template")
	}
	t.common.mu.Lock()
	trees, err := Parse(t.name, text, t.leftDelim, t.rightDelim, t.common.funcs, builtins())
	t.common.mu.Unlock()
	if err != nil {
		return err
	}
	for name, tree := range trees {
		if err := t.AddParseTree(name, tree); err != nil {
			return err
		}
	}
	return nil
}

// AddParseTree adds the parse tree for the template with the given name
// and associates it with t. If the template does not already exist in
// the group it is created; if it exists it is replaced, except that an
// empty tree does not replace an existing non-empty one.
func (t *Template) AddParseTree(name string, tree *Tree) error {
	// If the name is the name of this template, overwrite this template.
	nt := t
	if name != t.name {
		nt = NewAssociated(name, t)
	}
	replaced, err := t.associate(nt, tree)
	if err != nil {
		return err
	}
	if replaced || nt.Tree == nil {
		nt.Tree = tree
	}
	return nil
}

// associate installs the new template into the group of templates
// associated with t. The two are already known to share the group.
func (t *Template) associate(nt *Template, tree *Tree) (bool, error) {
	if nt.common != t.common {
		return false, &InternalError{Message: "associate not common"}
	}
	old := t.common.tmpl[nt.name]
	// If a template by that name exists, don't replace it with an empty one.
	if old != nil && IsEmptyTree(tree.Root) && old.Tree != nil {
		return false, nil
	}
	t.common.tmpl[nt.name] = nt
	return true, nil
}

// Lookup returns the template with the given name in t's group, or nil
// if there is none.
func (t *Template) Lookup(name string) *Template {
	if t.common == nil {
		return nil
	}
	return t.common.tmpl[name]
}

// Templates returns a slice of the templates associated with t,
// including t itself once parsed.
func (t *Template) Templates() []*Template {
	if t.common == nil {
		return nil
	}
	m := make([]*Template, 0, len(t.common.tmpl))
	for _, tmpl := range t.common.tmpl {
		m = append(m, tmpl)
	}
	return m
}

// Execute applies the parsed template to the specified data value and
// writes the output to wr. If an error occurs executing the template or
// writing its output, execution stops, but partial results may already
// have been written to the sink.
func (t *Template) Execute(wr io.Writer, data interface{}) (err error) {
	defer errRecover(&err)
	if logger := GetLogger(); logger.IsDebugMode() {
		logger.WithField("template", t.name).Debug("executing template")
	}
	maxDepth := GetGlobalConfig().MaxExecDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxExecDepth
	}
	e := &executor{
		tmpl:     t,
		wr:       wr,
		vars:     []variable{{"$", data}},
		maxDepth: maxDepth,
	}
	if t.Tree == nil || t.Tree.Root == nil {
		e.errorf("%q is an incomplete or empty template", t.name)
	}
	e.walk(data, t.Tree.Root)
	return nil
}

// ExecuteTemplate applies the template of t's group that has the given
// name to the specified data value and writes the output to wr.
func (t *Template) ExecuteTemplate(wr io.Writer, name string, data interface{}) error {
	var tmpl *Template
	if t.common != nil {
		tmpl = t.common.tmpl[name]
	}
	if tmpl == nil {
		return &ExecError{
			Name:    t.name,
			Message: fmt.Sprintf("no template %q associated with template %q", name, t.name),
		}
	}
	return tmpl.Execute(wr, data)
}

// ParseInputs creates a template group from named template texts. The
// inputs are parsed in sorted key order and the first key becomes the
// root template.
func ParseInputs(funcs *FuncMap, inputs map[string]string) (*Template, error) {
	return parseInputs(nil, funcs, inputs)
}

// ParseInputs parses the named template texts into t's group.
func (t *Template) ParseInputs(funcs *FuncMap, inputs map[string]string) (*Template, error) {
	return parseInputs(t, funcs, inputs)
}

func parseInputs(t *Template, funcs *FuncMap, inputs map[string]string) (*Template, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no template inputs given")
	}
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var err error
		if t, err = parseOne(t, funcs, name, inputs[name]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ParseFiles creates a template group from the named files. The base
// name of the first file becomes the root template.
func ParseFiles(funcs *FuncMap, filenames ...string) (*Template, error) {
	return parseFiles(nil, funcs, filenames...)
}

// ParseFiles parses the named files into t's group.
func (t *Template) ParseFiles(funcs *FuncMap, filenames ...string) (*Template, error) {
	return parseFiles(t, funcs, filenames...)
}

func parseFiles(t *Template, funcs *FuncMap, filenames ...string) (*Template, error) {
	if len(filenames) == 0 {
		return nil, errors.New("no template files given")
	}
	for _, filename := range filenames {
		text, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if t, err = parseOne(t, funcs, filepath.Base(filename), string(text)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseOne(t *Template, funcs *FuncMap, name, text string) (*Template, error) {
	if t == nil {
		t = New(name)
		if funcs != nil {
			if err := t.AddFuncs(funcs); err != nil {
				return nil, err
			}
		}
	}
	tmpl := t
	if name != t.name {
		tmpl = NewAssociated(name, t)
	}
	if err := tmpl.Parse(text); err != nil {
		return nil, err
	}
	return t, nil
}

// PrepareFile loads and parses a template file, consulting the default
// template cache when caching is enabled in the configuration.
func PrepareFile(path string, funcs *FuncMap) (*Template, error) {
	cfg := GetGlobalConfig()
	if cfg.CacheMaxSize > 0 {
		if tmpl, ok := DefaultCache().Get(path); ok {
			return tmpl, nil
		}
	}
	tmpl, err := ParseFiles(funcs, path)
	if err != nil {
		return nil, err
	}
	if cfg.CacheMaxSize > 0 {
		DefaultCache().Set(path, tmpl)
	}
	return tmpl, nil
}
