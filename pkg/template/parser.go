package template

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
)

// Tree is the representation of a single parsed template.
type Tree struct {
	Name      string    // name of the template represented by the tree
	ParseName string    // name of the top-level template during parsing, for error messages
	Root      *ListNode // top-level root of the tree
	text      string    // text parsed to create the template (or its parent)
	// Parsing only; cleared after parse.
	funcs     []*FuncMap
	lex       *lexer
	token     [3]Token // three-token lookahead for parser
	peekCount int
	vars      []string // variables defined at the moment
	treeSet   map[string]*Tree
	forDepth  int // nesting level of for loops
}

// NewTree allocates a new, unparsed parse tree with the given name.
func NewTree(name string) *Tree {
	return &Tree{Name: name}
}

// Parse parses the template definition string to construct a
// representation of the template for execution. If either action
// delimiter string is empty, the default ("{{" or "}}") is used.
// Embedded template definitions are added to the treeSet map.
func Parse(name, text, leftDelim, rightDelim string, funcs ...*FuncMap) (map[string]*Tree, error) {
	treeSet := make(map[string]*Tree)
	t := NewTree(name)
	t.text = text
	err := t.Parse(text, leftDelim, rightDelim, treeSet, funcs...)
	return treeSet, err
}

// IsEmptyTree reports whether this tree (node) is empty of everything
// but space.
func IsEmptyTree(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *ActionNode:
	case *IfNode:
	case *ListNode:
		for _, node := range n.Nodes {
			if !IsEmptyTree(node) {
				return false
			}
		}
		return true
	case *ForNode:
	case *TemplateNode:
	case *TextNode:
		return len(strings.TrimSpace(n.Text)) == 0
	case *WithNode:
	default:
		panic(&InternalError{Message: fmt.Sprintf("unknown node in IsEmptyTree: %s", n)})
	}
	return false
}

// Parse parses the template definition string into this tree, adding
// all embedded template definitions to treeSet.
func (t *Tree) Parse(text, leftDelim, rightDelim string, treeSet map[string]*Tree, funcs ...*FuncMap) (err error) {
	defer t.recoverParse(&err)
	t.ParseName = t.Name
	t.startParse(funcs, newLexer(t.Name, text, leftDelim, rightDelim), treeSet)
	t.text = text
	t.parse()
	t.add()
	t.stopParse()
	return nil
}

// recoverParse turns panics raised during parsing into returned errors.
func (t *Tree) recoverParse(errp *error) {
	if e := recover(); e != nil {
		if _, ok := e.(runtime.Error); ok {
			panic(e)
		}
		if t != nil {
			t.stopParse()
		}
		*errp = e.(error)
	}
}

func (t *Tree) startParse(funcs []*FuncMap, lex *lexer, treeSet map[string]*Tree) {
	t.lex = lex
	t.funcs = funcs
	t.treeSet = treeSet
	t.vars = []string{"$"}
}

// stopParse drops the parser scratch state to release memory.
func (t *Tree) stopParse() {
	t.lex = nil
	t.vars = nil
	t.funcs = nil
	t.treeSet = nil
	t.forDepth = 0
}

// add adds the tree to the treeSet, enforcing the rule that an empty
// definition does not replace an existing non-empty one.
func (t *Tree) add() {
	tree := t.treeSet[t.Name]
	if tree == nil || IsEmptyTree(tree.Root) {
		t.treeSet[t.Name] = t
		return
	}
	if !IsEmptyTree(t.Root) {
		t.errorf("multiple definition of template %q", t.Name)
	}
}

// ErrorLocation returns the "parseName:line:column" position of the
// node within the template source.
func (t *Tree) ErrorLocation(n Node) string {
	tree := n.tree()
	if tree == nil {
		tree = t
	}
	pos := n.Position()
	if pos > len(tree.text) {
		pos = len(tree.text)
	}
	text := tree.text[:pos]
	line := 1 + strings.Count(text, "\n")
	col := pos - strings.LastIndex(text, "\n")
	return fmt.Sprintf("%s:%d:%d", tree.ParseName, line, col)
}

// ErrorContext returns a textual representation of the node, clipped
// for inclusion in error messages.
func (t *Tree) ErrorContext(n Node) string {
	context := n.String()
	if r := []rune(context); len(r) > 20 {
		context = string(r[:20]) + "..."
	}
	return context
}

// errorf formats the error, records the position of the most recently
// read token and terminates processing.
func (t *Tree) errorf(format string, args ...interface{}) {
	t.Root = nil
	tok := t.token[0]
	col := 0
	if t.lex != nil && tok.Pos <= len(t.lex.input) {
		col = tok.Pos - strings.LastIndex(t.lex.input[:tok.Pos], "\n")
	}
	panic(&ParseError{
		Name:    t.ParseName,
		Line:    tok.Line,
		Column:  col,
		Message: fmt.Sprintf(format, args...),
	})
}

// next returns the next token.
func (t *Tree) next() Token {
	if t.peekCount > 0 {
		t.peekCount--
	} else {
		t.token[0] = t.lex.nextToken()
	}
	return t.token[t.peekCount]
}

// backup backs the input stream up one token.
func (t *Tree) backup() {
	t.peekCount++
}

// backup2 backs the input stream up two tokens. The zeroth token is
// already there.
func (t *Tree) backup2(t1 Token) {
	t.token[1] = t1
	t.peekCount = 2
}

// backup3 backs the input stream up three tokens. The zeroth token is
// already there.
func (t *Tree) backup3(t2, t1 Token) { // reverse order: we're pushing back
	t.token[1] = t1
	t.token[2] = t2
	t.peekCount = 3
}

// peek returns but does not consume the next token.
func (t *Tree) peek() Token {
	if t.peekCount > 0 {
		return t.token[t.peekCount-1]
	}
	t.peekCount = 1
	t.token[0] = t.lex.nextToken()
	return t.token[0]
}

// nextNonSpace returns the next non-space token.
func (t *Tree) nextNonSpace() Token {
	var token Token
	for {
		token = t.next()
		if token.Type != TokenSpace {
			break
		}
	}
	return token
}

// peekNonSpace returns but does not consume the next non-space token.
func (t *Tree) peekNonSpace() Token {
	token := t.nextNonSpace()
	t.backup()
	return token
}

// expect consumes the next token and guarantees it has the required type.
func (t *Tree) expect(expected TokenType, context string) Token {
	token := t.nextNonSpace()
	if token.Type != expected {
		t.unexpected(token, context)
	}
	return token
}

// expectOneOf consumes the next token and guarantees it has one of the
// required types.
func (t *Tree) expectOneOf(expected1, expected2 TokenType, context string) Token {
	token := t.nextNonSpace()
	if token.Type != expected1 && token.Type != expected2 {
		t.unexpected(token, context)
	}
	return token
}

// unexpected complains about the token and terminates processing.
func (t *Tree) unexpected(token Token, context string) {
	t.errorf("unexpected %s in %s", token, context)
}

// hasFunction reports whether a function with the given name exists in
// any of the parser's function maps.
func (t *Tree) hasFunction(name string) bool {
	for _, fm := range t.funcs {
		if fm == nil {
			continue
		}
		if fm.Contains(name) {
			return true
		}
	}
	return false
}

// useVar returns a node for a variable reference. It errors if the
// variable is not defined.
func (t *Tree) useVar(pos int, name string) Node {
	v := t.newVariable(pos, name)
	for _, varName := range t.vars {
		if varName == v.Ident[0] {
			return v
		}
	}
	t.errorf("undefined variable %s", name)
	return nil
}

// popVars trims the variable list to the specified length.
func (t *Tree) popVars(n int) {
	t.vars = t.vars[:n]
}

// parse is the top-level parser for a template, essentially the same
// as tokenList except it also parses {{define}} actions. It runs to EOF.
func (t *Tree) parse() {
	t.Root = t.newList(t.peek().Pos)
	for t.peek().Type != TokenEOF {
		if t.peek().Type == TokenLeftDelim {
			delim := t.next()
			if t.nextNonSpace().Type == TokenDefine {
				// Name will be updated once we know it.
				newT := NewTree("definition")
				newT.text = t.text
				newT.ParseName = t.ParseName
				newT.startParse(t.funcs, t.lex, t.treeSet)
				newT.parseDefinition()
				continue
			}
			t.backup2(delim)
		}
		switch n := t.textOrAction(); n.Type() {
		case NodeEnd, NodeElse:
			t.errorf("unexpected %s", n)
		default:
			t.Root.append(n)
		}
	}
}

// parseDefinition parses a {{define}} ... {{end}} template definition
// and installs the definition in the treeSet map. The "define" keyword
// has already been scanned.
func (t *Tree) parseDefinition() {
	const context = "define clause"
	name := t.expectOneOf(TokenString, TokenRawString, context)
	s, err := unquote(name.Val)
	if err != nil {
		t.errorf("%s", err)
	}
	t.Name = s
	t.expect(TokenRightDelim, context)
	var end Node
	t.Root, end = t.tokenList()
	if end.Type() != NodeEnd {
		t.errorf("unexpected %s in %s", end, context)
	}
	t.add()
	t.stopParse()
}

// tokenList parses
//
//	textOrAction*
//
// and terminates at {{end}} or {{else}}, which is returned separately.
func (t *Tree) tokenList() (list *ListNode, next Node) {
	list = t.newList(t.peekNonSpace().Pos)
	for t.peekNonSpace().Type != TokenEOF {
		next = t.textOrAction()
		switch next.Type() {
		case NodeEnd, NodeElse:
			return list, next
		}
		list.append(next)
	}
	t.errorf("unexpected EOF")
	return
}

// textOrAction parses
//
//	text | action
func (t *Tree) textOrAction() Node {
	switch token := t.nextNonSpace(); token.Type {
	case TokenText:
		return t.newText(token.Pos, token.Val)
	case TokenLeftDelim:
		return t.action()
	default:
		t.unexpected(token, "input")
	}
	return nil
}

// action parses an action:
//
//	control | pipeline
//
// The left delimiter is past. Now get actions.
// First word could be a keyword such as for.
func (t *Tree) action() Node {
	switch token := t.nextNonSpace(); token.Type {
	case TokenElse:
		return t.elseControl()
	case TokenEnd:
		return t.endControl()
	case TokenIf:
		return t.ifControl()
	case TokenFor:
		return t.forControl()
	case TokenTemplate:
		return t.templateControl()
	case TokenWith:
		return t.withControl()
	case TokenBreak:
		return t.breakControl()
	case TokenContinue:
		return t.continueControl()
	}
	t.backup()
	token := t.peek()
	// Do not pop variables; they persist until "end".
	return t.newAction(token.Pos, t.pipeline("command"))
}

// pipeline parses a pipeline:
//
//	declaration? command ('|' command)*
//
// A declaration is one or more comma-separated variables followed by
// ':=' (declare) or '=' (assign).
func (t *Tree) pipeline(context string) *PipeNode {
	var vars []*VariableNode
	decl := false
	pos := t.peekNonSpace().Pos
	// Are there declarations or assignments?
decls:
	for {
		v := t.peekNonSpace()
		if v.Type != TokenVariable {
			break
		}
		t.next()
		// Since space is a token, we need three-token look-ahead here
		// in the worst case: in "$x foo" we need to read "foo" (as
		// opposed to "=") to know that $x is an argument variable
		// rather than a declaration.
		tokenAfterVariable := t.peek()
		next := t.peekNonSpace()
		switch {
		case next.Type == TokenAssign || next.Type == TokenDeclare:
			t.nextNonSpace()
			vars = append(vars, t.newVariable(v.Pos, v.Val))
			t.vars = append(t.vars, v.Val)
			decl = next.Type == TokenDeclare
			break decls
		case next.Type == TokenComma:
			t.nextNonSpace()
			vars = append(vars, t.newVariable(v.Pos, v.Val))
			t.vars = append(t.vars, v.Val)
			if t.peekNonSpace().Type != TokenVariable {
				t.errorf("expected variable after comma in %s", context)
			}
		case len(vars) > 0:
			t.errorf("expected := or = after variable list in %s", context)
		case tokenAfterVariable.Type == TokenSpace:
			t.backup3(v, tokenAfterVariable)
			break decls
		default:
			t.backup2(v)
			break decls
		}
	}
	pipe := t.newPipeline(pos, vars)
	pipe.Decl = decl
	for {
		switch token := t.nextNonSpace(); token.Type {
		case TokenRightDelim, TokenRightParen:
			t.checkPipeline(pipe, context)
			if token.Type == TokenRightParen {
				t.backup()
			}
			return pipe
		case TokenBool, TokenCharConstant, TokenDot, TokenField, TokenIdentifier,
			TokenNumber, TokenNull, TokenString, TokenRawString, TokenVariable, TokenLeftParen:
			t.backup()
			pipe.append(t.command())
		default:
			t.unexpected(token, context)
		}
	}
}

// checkPipeline rejects empty pipelines and non-executable commands in
// pipeline stages after the first.
func (t *Tree) checkPipeline(pipe *PipeNode, context string) {
	if len(pipe.Cmds) == 0 {
		t.errorf("missing value for %s", context)
	}
	// Only the first command of a pipeline can start with a non-executable operand.
	for i, c := range pipe.Cmds[1:] {
		switch c.Args[0].Type() {
		case NodeBool, NodeDot, NodeNull, NodeNumber, NodeString:
			t.errorf("non executable command in pipeline stage %d", i+2)
		}
	}
}

// command parses a command:
//
//	operand (space operand)*
//
// Space-separated arguments up to a pipeline character or right
// delimiter. We consume the pipe character but leave the right delim to
// terminate the action.
func (t *Tree) command() *CommandNode {
	cmd := t.newCommand(t.peekNonSpace().Pos)
	for {
		t.peekNonSpace() // skip leading spaces
		operand := t.operand()
		if operand != nil {
			cmd.append(operand)
		}
		switch token := t.next(); token.Type {
		case TokenSpace:
			continue
		case TokenError:
			t.errorf("%s", token.Val)
		case TokenRightDelim, TokenRightParen:
			t.backup()
		case TokenPipe:
		default:
			t.errorf("unexpected %s in operand", token)
		}
		break
	}
	if len(cmd.Args) == 0 {
		t.errorf("empty command")
	}
	return cmd
}

// operand parses an operand:
//
//	term .field*
//
// An operand is a space-separated component of a command, a term
// possibly followed by field accesses. A nil return means the next
// token is not an operand.
func (t *Tree) operand() Node {
	node := t.term()
	if node == nil {
		return nil
	}
	if t.peek().Type == TokenField {
		chain := t.newChain(t.peek().Pos, node)
		for t.peek().Type == TokenField {
			chain.add(t.next().Val)
		}
		// Obvious parsing errors involving literal values are detected
		// here. More complex error cases will have to be handled at
		// execution time.
		switch node.Type() {
		case NodeField:
			node = t.newField(chain.Position(), chain.String())
		case NodeVariable:
			node = t.newVariable(chain.Position(), chain.String())
		case NodeBool, NodeString, NodeNumber, NodeNull, NodeDot:
			t.errorf("unexpected . after term %q", node)
		default:
			node = chain
		}
	}
	return node
}

// term parses a term:
//
//	literal (number, string, null, boolean)
//	function (identifier)
//	dot
//	.field
//	$variable
//	'(' pipeline ')'
//
// A term is a simple "expression". A nil return means the next token is
// not a term.
func (t *Tree) term() Node {
	switch token := t.nextNonSpace(); token.Type {
	case TokenError:
		t.errorf("%s", token.Val)
	case TokenIdentifier:
		if !t.hasFunction(token.Val) {
			t.errorf("function %q not defined", token.Val)
		}
		return t.newIdentifier(token.Pos, token.Val)
	case TokenDot:
		return t.newDot(token.Pos)
	case TokenNull:
		return t.newNull(token.Pos)
	case TokenVariable:
		return t.useVar(token.Pos, token.Val)
	case TokenField:
		return t.newField(token.Pos, token.Val)
	case TokenBool:
		return t.newBool(token.Pos, token.Val == "true")
	case TokenCharConstant, TokenNumber:
		return t.newNumber(token.Pos, token.Val, token.Type)
	case TokenLeftParen:
		pipe := t.pipeline("parenthesized pipeline")
		if token := t.next(); token.Type != TokenRightParen {
			t.errorf("unclosed right paren: unexpected %s", token)
		}
		return pipe
	case TokenString, TokenRawString:
		s, err := unquote(token.Val)
		if err != nil {
			t.errorf("%s", err)
		}
		return t.newString(token.Pos, token.Val, s)
	}
	t.backup()
	return nil
}

// elseControl parses
//
//	{{else}}
func (t *Tree) elseControl() Node {
	// Special case for "else if".
	peek := t.peekNonSpace()
	if peek.Type == TokenIf {
		// We see "{{else if ..." but in effect rewrite it to
		// "{{else}}{{if ...".
		return t.newElse(peek.Pos)
	}
	return t.newElse(t.expect(TokenRightDelim, "else").Pos)
}

// endControl parses
//
//	{{end}}
func (t *Tree) endControl() Node {
	return t.newEnd(t.expect(TokenRightDelim, "end").Pos)
}

// templateControl parses
//
//	{{template stringValue pipeline}}
//
// The name must be something that can evaluate to a string.
func (t *Tree) templateControl() Node {
	const context = "template clause"
	token := t.nextNonSpace()
	name := t.parseTemplateName(token, context)
	var pipe *PipeNode
	if t.nextNonSpace().Type != TokenRightDelim {
		t.backup()
		// Do not pop variables; they persist until "end".
		pipe = t.pipeline(context)
	}
	return t.newTemplate(token.Pos, name, pipe)
}

func (t *Tree) parseTemplateName(token Token, context string) string {
	if token.Type != TokenString && token.Type != TokenRawString {
		t.unexpected(token, context)
	}
	name, err := unquote(token.Val)
	if err != nil {
		t.errorf("%s", err)
	}
	return name
}

// ifControl parses
//
//	{{if pipeline}} tokenList {{end}}
//	{{if pipeline}} tokenList {{else}} tokenList {{end}}
func (t *Tree) ifControl() Node {
	return t.newIf(t.parseControl(true, "if"))
}

// forControl parses
//
//	{{for pipeline}} tokenList {{end}}
//	{{for pipeline}} tokenList {{else}} tokenList {{end}}
func (t *Tree) forControl() Node {
	return t.newFor(t.parseControl(false, "for"))
}

// withControl parses
//
//	{{with pipeline}} tokenList {{end}}
//	{{with pipeline}} tokenList {{else}} tokenList {{end}}
func (t *Tree) withControl() Node {
	return t.newWith(t.parseControl(false, "with"))
}

// breakControl parses
//
//	{{break}}
func (t *Tree) breakControl() Node {
	if t.forDepth == 0 {
		t.errorf("unexpected break outside of for")
	}
	return t.newBreak(t.expect(TokenRightDelim, "break").Pos)
}

// continueControl parses
//
//	{{continue}}
func (t *Tree) continueControl() Node {
	if t.forDepth == 0 {
		t.errorf("unexpected continue outside of for")
	}
	return t.newContinue(t.expect(TokenRightDelim, "continue").Pos)
}

func (t *Tree) parseControl(allowElseIf bool, context string) (pos int, pipe *PipeNode, list, elseList *ListNode) {
	defer t.popVars(len(t.vars))
	pipe = t.pipeline(context)
	if context == "for" {
		t.forDepth++
	}
	var next Node
	list, next = t.tokenList()
	if context == "for" {
		t.forDepth--
	}
	if next.Type() == NodeElse {
		if allowElseIf && t.peek().Type == TokenIf {
			// Special case for "else if". If the "else" is followed
			// immediately by an "if", the elseControl will have left
			// the "if" token pending. Treat
			//	{{if a}}_{{else if b}}_{{end}}
			// as
			//	{{if a}}_{{else}}{{if b}}_{{end}}{{end}}.
			// To do this, parse the "if" as usual and stop at its
			// {{end}}; the subsequent {{end}} is assumed. This
			// technique works even for long if-else-if chains.
			t.next() // consume the "if" token
			elseList = t.newList(next.Position())
			elseList.append(t.ifControl())
		} else {
			// Don't consume the next token - only one {{end}} required.
			elseList, next = t.tokenList()
			if next.Type() != NodeEnd {
				t.errorf("expected end; found %s", next)
			}
		}
	}
	return pipe.Pos, pipe, list, elseList
}

// newNumber creates a NumberNode from the literal text, decoding it
// eagerly into integer and floating-point views. Integers must fit in
// 32 bits; larger literals are reported as overflow.
func (t *Tree) newNumber(pos int, text string, typ TokenType) *NumberNode {
	n := &NumberNode{baseNode: baseNode{tr: t, typ: NodeNumber, Pos: pos}, Text: text}
	if typ == TokenCharConstant {
		if len(text) < 2 || text[0] != '\'' {
			t.errorf("malformed character constant: %s", text)
		}
		r, tail, err := unquoteChar(text[1:], text[0])
		if err != nil {
			t.errorf("%s", err)
		}
		if tail != "'" {
			t.errorf("malformed character constant: %s", text)
		}
		n.IsInt = true
		n.Int = int(r)
		n.IsFloat = true
		n.Float = float64(r)
		return n
	}
	isNegative := strings.HasPrefix(text, "-")
	unsigned := text
	if isNegative || strings.HasPrefix(text, "+") {
		unsigned = text[1:]
	}
	var i int64
	var err error
	switch {
	case strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X"):
		i, err = strconv.ParseInt(unsigned[2:], 16, 64)
	case len(unsigned) > 1 && unsigned[0] == '0' && !strings.ContainsAny(unsigned, ".eExX"):
		i, err = strconv.ParseInt(unsigned, 8, 64)
	default:
		i, err = strconv.ParseInt(unsigned, 10, 64)
	}
	if err == nil {
		if (!isNegative && i > math.MaxInt32) || (isNegative && -i < math.MinInt32) {
			t.errorf("integer overflow: %s", text)
		}
		n.IsInt = true
		n.Int = int(i)
	}
	if n.IsInt {
		n.IsFloat = true
		n.Float = float64(n.Int)
	} else if f, ferr := strconv.ParseFloat(unsigned, 64); ferr == nil {
		// If we parsed it as a float but it looks like an integer,
		// it's a huge number too large to fit in an int. Reject it.
		if !strings.ContainsAny(unsigned, ".eE") {
			t.errorf("integer overflow: %s", text)
		}
		n.IsFloat = true
		n.Float = f
		// If a floating-point extraction succeeded, extract the int if needed.
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			n.IsInt = true
			n.Int = int(f)
		}
	}
	if isNegative {
		n.Int = -n.Int
		n.Float = -n.Float
	}
	if !n.IsInt && !n.IsFloat {
		t.errorf("illegal number syntax: %q", text)
	}
	return n
}
