package template

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"runtime"
	"strings"
)

// loopControl is the signal a walk returns to its enclosing loop.
type loopControl int

const (
	loopNone     loopControl = iota // no action
	loopBreak                       // break out of for
	loopContinue                    // continue with the next for iteration
)

// executor represents the state of one execution.
type executor struct {
	tmpl     *Template
	wr       io.Writer
	node     Node       // current node, for error reporting
	vars     []variable // stack of variable values
	depth    int        // the height of the stack of executing templates
	forDepth int        // nesting level of for loops
	maxDepth int        // maximum nesting of templates
}

// variable holds the dynamic value of a variable.
type variable struct {
	name  string
	value interface{}
}

// writeError wraps an error returned by the output sink, so it can be
// told apart from evaluation errors during recovery.
type writeError struct {
	err error
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// errRecover turns panics raised during execution into returned errors.
func errRecover(errp *error) {
	if e := recover(); e != nil {
		switch err := e.(type) {
		case runtime.Error:
			panic(e)
		case *writeError:
			*errp = err.err
		case *ExecError:
			*errp = err
		case *InternalError:
			*errp = err
		default:
			panic(e)
		}
	}
}

// at marks the state to be on node, for error reporting.
func (e *executor) at(node Node) {
	e.node = node
}

// errorf records an ExecError and terminates processing.
func (e *executor) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if e.node == nil || e.tmpl.Tree == nil {
		panic(&ExecError{Name: e.tmpl.name, Message: msg})
	}
	panic(&ExecError{
		Name:     e.tmpl.name,
		Location: e.tmpl.Tree.ErrorLocation(e.node),
		Context:  e.tmpl.Tree.ErrorContext(e.node),
		Message:  msg,
	})
}

// write sends a chunk to the output sink, surfacing sink errors to the
// caller without attempting recovery.
func (e *executor) write(s string) {
	if _, err := io.WriteString(e.wr, s); err != nil {
		panic(&writeError{err: err})
	}
}

func (e *executor) printValue(node Node, value interface{}) {
	e.at(node)
	e.write(formatValue(value))
}

// push pushes a new variable on the stack.
func (e *executor) push(name string, value interface{}) {
	e.vars = append(e.vars, variable{name, value})
}

// pop pops the variable stack up to the mark.
func (e *executor) pop(mark int) {
	e.vars = e.vars[:mark]
}

// setTopVar overwrites the top-nth variable on the stack. Used by for
// iterations.
func (e *executor) setTopVar(n int, value interface{}) {
	e.vars[len(e.vars)-n].value = value
}

// setVar overwrites the last declared variable with the given name.
// Used by variable assignments.
func (e *executor) setVar(name string, value interface{}) {
	for i := len(e.vars) - 1; i >= 0; i-- {
		if e.vars[i].name == name {
			e.vars[i].value = value
			return
		}
	}
	e.errorf("undefined variable: %s", name)
}

// varValue returns the value of the named variable.
func (e *executor) varValue(name string) interface{} {
	for i := len(e.vars) - 1; i >= 0; i-- {
		if e.vars[i].name == name {
			return e.vars[i].value
		}
	}
	e.errorf("undefined variable: %s", name)
	return nil
}

func (e *executor) notAFunction(args []Node, hasFinal bool) {
	if len(args) > 1 || hasFinal {
		e.errorf("can't give argument to non-function %s", args[0])
	}
}

// constant returns the value of a number in a context where we don't
// know the type. The syntax guides us to some extent.
func (e *executor) constant(num *NumberNode) interface{} {
	e.at(num)
	if num.IsFloat && !isHexConstant(num.Text) && strings.ContainsAny(num.Text, ".eE") {
		return num.Float
	}
	if num.IsInt {
		return num.Int
	}
	return nil
}

// walk evaluates one node of the tree, writing any output it produces.
func (e *executor) walk(dot interface{}, node Node) loopControl {
	e.at(node)
	switch node := node.(type) {
	case *ActionNode:
		// If the action declares variables, don't print the result.
		val := e.evalPipeline(dot, node.Pipe)
		if len(node.Pipe.Vars) == 0 {
			e.printValue(node, val)
		}
	case *IfNode:
		return e.walkIfOrWith(NodeIf, dot, node.Pipe, node.List, node.ElseList)
	case *ListNode:
		for _, n := range node.Nodes {
			if c := e.walk(dot, n); c != loopNone {
				return c
			}
		}
	case *ForNode:
		return e.walkFor(dot, node)
	case *TemplateNode:
		e.walkTemplate(dot, node)
	case *TextNode:
		e.write(node.Text)
	case *WithNode:
		return e.walkIfOrWith(NodeWith, dot, node.Pipe, node.List, node.ElseList)
	case *BreakNode:
		if e.forDepth == 0 {
			e.errorf("invalid break outside of for")
		}
		return loopBreak
	case *ContinueNode:
		if e.forDepth == 0 {
			e.errorf("invalid continue outside of for")
		}
		return loopContinue
	default:
		e.errorf("unknown node: %s", node)
	}
	return loopNone
}

// walkIfOrWith walks an 'if' or 'with' node. They are identical in
// behavior except that 'with' sets dot.
func (e *executor) walkIfOrWith(typ NodeType, dot interface{}, pipe *PipeNode, list, elseList *ListNode) loopControl {
	mark := len(e.vars)
	defer e.pop(mark)
	val := e.evalPipeline(dot, pipe)
	if isTrue(val) {
		if typ == NodeWith {
			return e.walk(val, list)
		}
		return e.walk(dot, list)
	}
	if elseList != nil {
		return e.walk(dot, elseList)
	}
	return loopNone
}

func (e *executor) walkFor(dot interface{}, f *ForNode) loopControl {
	e.at(f)
	mark := len(e.vars)
	defer e.pop(mark)
	val := e.evalPipeline(dot, f.Pipe)
	markAfterPipe := len(e.vars)
	e.forDepth++

	oneIteration := func(elem interface{}) loopControl {
		// Set the top-declared variable to the element.
		if len(f.Pipe.Vars) == 1 {
			e.setTopVar(1, elem)
		}
		c := e.walk(elem, f.List)
		e.pop(markAfterPipe)
		return c
	}

	if !isNull(val) {
		v, _ := indirect(reflect.ValueOf(val))
		switch v.Kind() {
		case reflect.Array, reflect.Slice:
			if v.Len() > 0 {
				for i := 0; i < v.Len(); i++ {
					if oneIteration(v.Index(i).Interface()) == loopBreak {
						break
					}
				}
				e.forDepth--
				return loopNone
			}
		case reflect.Map:
			// Mappings iterate their values in key order.
			if v.Len() > 0 {
				for _, key := range sortedMapKeys(v) {
					if oneIteration(v.MapIndex(key).Interface()) == loopBreak {
						break
					}
				}
				e.forDepth--
				return loopNone
			}
		default:
			e.errorf("for can't iterate over %v", val)
		}
	}
	e.forDepth--
	if f.ElseList != nil {
		return e.walk(dot, f.ElseList)
	}
	return loopNone
}

func (e *executor) walkTemplate(dot interface{}, t *TemplateNode) {
	e.at(t)
	tmpl := e.tmpl.common.tmpl[t.Name]
	if tmpl == nil {
		e.errorf("template %q not defined", t.Name)
	}
	if e.depth == e.maxDepth {
		e.errorf("exceeded maximum template depth (%d)", e.maxDepth)
	}
	// Variables declared by the pipeline persist.
	dot = e.evalPipeline(dot, t.Pipe)
	newState := *e
	newState.depth++
	newState.tmpl = tmpl
	newState.forDepth = 0
	// Template invocations inherit no variables.
	newState.vars = []variable{{"$", dot}}
	if tmpl.Tree == nil || tmpl.Tree.Root == nil {
		newState.errorf("%q is an incomplete or empty template", tmpl.name)
	}
	newState.walk(dot, tmpl.Tree.Root)
}

// evalPipeline returns the value acquired by evaluating a pipeline. If
// the pipeline has a variable declaration, the variables are pushed on
// the stack; assignments rewrite the nearest matching name.
func (e *executor) evalPipeline(dot interface{}, pipe *PipeNode) interface{} {
	if pipe == nil {
		return nil
	}
	e.at(pipe)
	var val interface{}
	hasFinal := false
	for _, cmd := range pipe.Cmds {
		val = e.evalCommand(dot, cmd, val, hasFinal)
		hasFinal = true // the result of a command becomes the final value of the next
	}
	for _, v := range pipe.Vars {
		if pipe.Decl {
			e.push(v.Ident[0], val)
		} else {
			e.setVar(v.Ident[0], val)
		}
	}
	return val
}

func (e *executor) evalCommand(dot interface{}, cmd *CommandNode, final interface{}, hasFinal bool) interface{} {
	firstWord := cmd.Args[0]
	switch n := firstWord.(type) {
	case *FieldNode:
		return e.evalFieldNode(dot, n, cmd.Args, final, hasFinal)
	case *ChainNode:
		return e.evalChainNode(dot, n, cmd.Args, final, hasFinal)
	case *IdentifierNode:
		return e.evalFunction(dot, n, cmd, cmd.Args, final, hasFinal)
	case *PipeNode:
		// Parenthesized pipeline. The arguments are all inside the
		// pipeline; the final value is ignored.
		return e.evalPipeline(dot, n)
	case *VariableNode:
		return e.evalVariableNode(dot, n, cmd.Args, final, hasFinal)
	}
	e.at(firstWord)
	e.notAFunction(cmd.Args, hasFinal)
	switch n := firstWord.(type) {
	case *BoolNode:
		return n.True
	case *DotNode:
		return dot
	case *NullNode:
		e.errorf("null is not a command")
	case *NumberNode:
		return e.constant(n)
	case *StringNode:
		return n.Text
	}
	e.errorf("can't evaluate command %s", firstWord)
	return nil
}

func (e *executor) evalFieldNode(dot interface{}, field *FieldNode, args []Node, final interface{}, hasFinal bool) interface{} {
	e.at(field)
	return e.evalFieldChain(dot, dot, field, field.Ident, args, final, hasFinal)
}

func (e *executor) evalChainNode(dot interface{}, chain *ChainNode, args []Node, final interface{}, hasFinal bool) interface{} {
	e.at(chain)
	if len(chain.Field) == 0 {
		e.errorf("internal error: no fields in evalChainNode")
	}
	if chain.Node.Type() == NodeNull {
		e.errorf("indirection through explicit null in %s", chain)
	}
	// In case of (pipe).field1.field2, eval the pipeline, then the fields.
	pipe := e.evalArg(dot, chain.Node)
	return e.evalFieldChain(dot, pipe, chain, chain.Field, args, final, hasFinal)
}

func (e *executor) evalVariableNode(dot interface{}, v *VariableNode, args []Node, final interface{}, hasFinal bool) interface{} {
	// $x.field has $x as the first ident, field as the second. Eval the
	// var, then the fields.
	e.at(v)
	val := e.varValue(v.Ident[0])
	if len(v.Ident) == 1 {
		e.notAFunction(args, hasFinal)
		return val
	}
	return e.evalFieldChain(dot, val, v, v.Ident[1:], args, final, hasFinal)
}

// evalArg evaluates a single argument node. Type checking occurs during
// the method or function call.
func (e *executor) evalArg(dot interface{}, n Node) interface{} {
	e.at(n)
	switch n := n.(type) {
	case *DotNode:
		return dot
	case *NullNode:
		return nil
	case *FieldNode:
		return e.evalFieldNode(dot, n, []Node{n}, nil, false)
	case *VariableNode:
		return e.evalVariableNode(dot, n, nil, nil, false)
	case *PipeNode:
		return e.evalPipeline(dot, n)
	case *IdentifierNode:
		return e.evalFunction(dot, n, n, nil, nil, false)
	case *ChainNode:
		return e.evalChainNode(dot, n, nil, nil, false)
	case *BoolNode:
		return n.True
	case *NumberNode:
		return e.constant(n)
	case *StringNode:
		return n.Text
	}
	e.errorf("can't handle %s for arg", n)
	return nil
}

// evalFieldChain evaluates .x.y.z possibly followed by arguments. dot
// is the environment in which to evaluate arguments, while receiver is
// the value being walked along the chain.
func (e *executor) evalFieldChain(dot, receiver interface{}, node Node, ident []string, args []Node, final interface{}, hasFinal bool) interface{} {
	n := len(ident)
	for i := 0; i < n-1; i++ {
		receiver = e.evalField(dot, ident[i], node, nil, nil, false, receiver)
	}
	// If it's a method, it gets the arguments.
	return e.evalField(dot, ident[n-1], node, args, final, hasFinal, receiver)
}

// evalField evaluates an expression like .field or .field arg1 arg2 on
// the given receiver. Resolution order: the length of an array-like
// receiver, a mapping key, a readable property or method, and finally a
// struct field.
func (e *executor) evalField(dot interface{}, fieldName string, node Node, args []Node, final interface{}, hasFinal bool, receiver interface{}) interface{} {
	if isNull(receiver) {
		e.errorf("null pointer evaluating null.%s", fieldName)
	}
	hasArgs := len(args) > 1 || hasFinal

	v, _ := indirect(reflect.ValueOf(receiver))

	// Special case of the length pseudo-field of array-like receivers.
	if fieldName == "length" {
		switch v.Kind() {
		case reflect.Array, reflect.Slice, reflect.String:
			return v.Len()
		}
	}

	// A mapping resolves the name as a key; a missing key yields null.
	if v.Kind() == reflect.Map {
		nameVal := reflect.ValueOf(fieldName)
		if nameVal.Type().AssignableTo(v.Type().Key()) {
			res := v.MapIndex(nameVal)
			if res.IsValid() {
				return res.Interface()
			}
		}
		return nil
	}

	// A readable property (conventional getter) or method, tried as an
	// overload set in order.
	rv := reflect.ValueOf(receiver)
	goName := exportedName(fieldName)
	var descs []*funcDescriptor
	for _, name := range []string{goName, "Get" + goName} {
		if m := rv.MethodByName(name); m.IsValid() {
			descs = append(descs, &funcDescriptor{fn: m, typ: m.Type()})
		}
	}
	if len(descs) > 0 {
		return e.evalCall(dot, descs, node, fieldName, args, final, hasFinal)
	}

	// A public field.
	if v.Kind() == reflect.Struct {
		if sf, ok := v.Type().FieldByName(goName); ok && sf.IsExported() {
			if hasArgs {
				e.errorf("%s has arguments but cannot be invoked as method", fieldName)
			}
			return v.FieldByIndex(sf.Index).Interface()
		}
	}

	e.errorf("%s is not a field/method of %s", fieldName, v.Type())
	return nil
}

func (e *executor) evalFunction(dot interface{}, node *IdentifierNode, cmd Node, args []Node, final interface{}, hasFinal bool) interface{} {
	e.at(node)
	name := node.Ident
	descs := e.tmpl.findFunc(name)
	if len(descs) == 0 {
		e.errorf("%q is not a defined function", name)
	}
	return e.evalCall(dot, descs, cmd, name, args, final, hasFinal)
}

// evalCall executes a method or function call. It takes an overload
// set, trying each callable in registration order and keeping the first
// successful result; if none succeeds the failures are aggregated into
// one error naming every overload.
func (e *executor) evalCall(dot interface{}, descs []*funcDescriptor, node Node, name string, args []Node, final interface{}, hasFinal bool) interface{} {
	if len(args) > 0 {
		args = args[1:] // zeroth arg is function name/node; not passed to function
	}
	argv := make([]interface{}, 0, len(args)+1)
	for _, arg := range args {
		argv = append(argv, e.evalArg(dot, arg))
	}
	if hasFinal {
		argv = append(argv, final)
	}

	var errs []string
	for _, d := range descs {
		result, err := callFunc(d, argv)
		if err != nil {
			errs = append(errs, fmt.Sprintf("\n(%s): %s", d, err))
			continue
		}
		return result
	}
	e.at(node)
	var sb strings.Builder
	sb.WriteString("error calling " + name + ":")
	for _, s := range errs {
		sb.WriteString(s)
	}
	e.errorf("%s", sb.String())
	return nil
}

// callFunc invokes one overload, coercing the arguments to its formal
// parameter types. Panics raised by the callable are captured and
// reported as that overload's failure.
func callFunc(d *funcDescriptor, argv []interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(error); ok {
				err = re
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()

	typ := d.typ
	if typ.NumOut() == 0 {
		return nil, errors.New("can't call method/function with void return type")
	}
	if typ.NumOut() > 2 || (typ.NumOut() == 2 && typ.Out(1) != errorType) {
		return nil, errors.New("function must return one value, or one value and an error")
	}

	numIn := typ.NumIn()
	var in []reflect.Value
	if typ.IsVariadic() {
		fixed := numIn - 1
		if len(argv) < fixed {
			return nil, fmt.Errorf("wrong number of args: want at least %d, got %d", fixed, len(argv))
		}
		in = make([]reflect.Value, len(argv))
		for i := 0; i < fixed; i++ {
			if in[i], err = coerceArg(argv[i], typ.In(i)); err != nil {
				return nil, err
			}
		}
		elem := typ.In(fixed).Elem()
		for i := fixed; i < len(argv); i++ {
			if in[i], err = coerceArg(argv[i], elem); err != nil {
				return nil, err
			}
		}
	} else {
		if len(argv) != numIn {
			return nil, fmt.Errorf("wrong number of args: want %d, got %d", numIn, len(argv))
		}
		in = make([]reflect.Value, len(argv))
		for i := range argv {
			if in[i], err = coerceArg(argv[i], typ.In(i)); err != nil {
				return nil, err
			}
		}
	}

	out := d.fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// coerceArg converts an evaluated argument to the formal parameter
// type, widening numerics where the conversion is lossless.
func coerceArg(v interface{}, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.New("assign null to primitive type")
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumeric(v) && isNumericKind(t.Kind()) {
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			if isIntegerKind(t.Kind()) && rv.Float() != math.Trunc(rv.Float()) {
				return reflect.Value{}, fmt.Errorf("expected %s; got %s", t, rv.Type())
			}
		}
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("expected %s; got %s", t, rv.Type())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
