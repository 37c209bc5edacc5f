package template

import (
	"fmt"
	"strings"
)

// NodeType identifies the type of a parse tree node.
type NodeType int

const (
	NodeText     NodeType = iota // plain text
	NodeAction                   // a non-control action such as a field evaluation
	NodeBool                     // a boolean constant
	NodeChain                    // a sequence of field accesses
	NodeCommand                  // an element of a pipeline
	NodeDot                      // the cursor, dot
	NodeField                    // a field or method name
	NodeIdentifier               // an identifier; always a function name
	NodeIf                       // an if action
	NodeList                     // a list of nodes
	NodeNull                     // the untyped null constant
	NodeNumber                   // a numerical constant
	NodePipe                     // a pipeline of commands
	NodeFor                      // a for action
	NodeElse                     // an else action; not added to tree
	NodeEnd                      // an end action; not added to tree
	NodeWith                     // a with action
	NodeBreak                    // a break action
	NodeContinue                 // a continue action
	NodeString                   // a string constant
	NodeTemplate                 // a template invocation action
	NodeVariable                 // a $ variable
)

// Node is an element in the parse tree.
type Node interface {
	Type() NodeType
	String() string
	// Position returns the byte offset of the node in the original input.
	Position() int
	// tree returns the *Tree that owns the node, for error positioning.
	tree() *Tree
}

// baseNode carries the fields shared by all node variants.
type baseNode struct {
	tr  *Tree
	typ NodeType
	Pos int
}

func (n *baseNode) Type() NodeType { return n.typ }
func (n *baseNode) Position() int  { return n.Pos }
func (n *baseNode) tree() *Tree    { return n.tr }

// ListNode holds a sequence of nodes.
type ListNode struct {
	baseNode
	Nodes []Node
}

func (t *Tree) newList(pos int) *ListNode {
	return &ListNode{baseNode: baseNode{tr: t, typ: NodeList, Pos: pos}}
}

func (l *ListNode) append(n Node) {
	l.Nodes = append(l.Nodes, n)
}

func (l *ListNode) String() string {
	var sb strings.Builder
	for _, n := range l.Nodes {
		sb.WriteString(n.String())
	}
	return sb.String()
}

// TextNode holds plain text.
type TextNode struct {
	baseNode
	Text string // may span newlines
}

func (t *Tree) newText(pos int, text string) *TextNode {
	return &TextNode{baseNode: baseNode{tr: t, typ: NodeText, Pos: pos}, Text: text}
}

func (n *TextNode) String() string { return n.Text }

// PipeNode holds a pipeline with optional declaration.
type PipeNode struct {
	baseNode
	Decl bool            // the variables are being declared, not assigned
	Vars []*VariableNode // variables in lexical order
	Cmds []*CommandNode  // the commands in lexical order
}

func (t *Tree) newPipeline(pos int, vars []*VariableNode) *PipeNode {
	return &PipeNode{baseNode: baseNode{tr: t, typ: NodePipe, Pos: pos}, Vars: vars}
}

func (p *PipeNode) append(cmd *CommandNode) {
	p.Cmds = append(p.Cmds, cmd)
}

func (p *PipeNode) String() string {
	var sb strings.Builder
	if len(p.Vars) > 0 {
		for i, v := range p.Vars {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		if p.Decl {
			sb.WriteString(" := ")
		} else {
			sb.WriteString(" = ")
		}
	}
	for i, c := range p.Cmds {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(c.String())
	}
	return sb.String()
}

// VariableNode holds a list of variable names, possibly with chained
// field accesses. The dollar sign is part of the (first) name.
type VariableNode struct {
	baseNode
	Ident []string // variable name and fields in lexical order
}

func (t *Tree) newVariable(pos int, ident string) *VariableNode {
	segments := strings.Split(ident, ".")
	for _, s := range segments {
		if s == "" {
			t.errorf("malformed variable name %s", ident)
		}
	}
	return &VariableNode{baseNode: baseNode{tr: t, typ: NodeVariable, Pos: pos}, Ident: segments}
}

func (n *VariableNode) String() string {
	return strings.Join(n.Ident, ".")
}

// CommandNode holds a command (one stage of a pipeline).
type CommandNode struct {
	baseNode
	Args []Node // arguments in lexical order: identifier, field, or constant
}

func (t *Tree) newCommand(pos int) *CommandNode {
	return &CommandNode{baseNode: baseNode{tr: t, typ: NodeCommand, Pos: pos}}
}

func (c *CommandNode) append(arg Node) {
	c.Args = append(c.Args, arg)
}

func (c *CommandNode) String() string {
	var sb strings.Builder
	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if arg.Type() == NodePipe {
			sb.WriteString("(" + arg.String() + ")")
			continue
		}
		sb.WriteString(arg.String())
	}
	return sb.String()
}

// ActionNode holds an action (something bounded by delimiters).
// Control actions have their own nodes; ActionNode represents simple
// ones such as field evaluations and parenthesized pipelines.
type ActionNode struct {
	baseNode
	Pipe *PipeNode
}

func (t *Tree) newAction(pos int, pipe *PipeNode) *ActionNode {
	return &ActionNode{baseNode: baseNode{tr: t, typ: NodeAction, Pos: pos}, Pipe: pipe}
}

func (n *ActionNode) String() string {
	return fmt.Sprintf("{{%s}}", n.Pipe)
}

// IdentifierNode holds an identifier, which is always a function name.
type IdentifierNode struct {
	baseNode
	Ident string
}

func (t *Tree) newIdentifier(pos int, ident string) *IdentifierNode {
	return &IdentifierNode{baseNode: baseNode{tr: t, typ: NodeIdentifier, Pos: pos}, Ident: ident}
}

func (n *IdentifierNode) String() string { return n.Ident }

// DotNode holds the special identifier '.'.
type DotNode struct {
	baseNode
}

func (t *Tree) newDot(pos int) *DotNode {
	return &DotNode{baseNode: baseNode{tr: t, typ: NodeDot, Pos: pos}}
}

func (n *DotNode) String() string { return "." }

// NullNode holds the untyped null constant.
type NullNode struct {
	baseNode
}

func (t *Tree) newNull(pos int) *NullNode {
	return &NullNode{baseNode: baseNode{tr: t, typ: NodeNull, Pos: pos}}
}

func (n *NullNode) String() string { return "null" }

// FieldNode holds a field (identifier starting with '.'). The names may
// be chained ('.x.y'); the periods are dropped from each ident.
type FieldNode struct {
	baseNode
	Ident []string // the identifiers in lexical order
}

func (t *Tree) newField(pos int, ident string) *FieldNode {
	// ident[0] is the leading dot.
	return &FieldNode{baseNode: baseNode{tr: t, typ: NodeField, Pos: pos}, Ident: strings.Split(ident[1:], ".")}
}

func (n *FieldNode) String() string {
	return "." + strings.Join(n.Ident, ".")
}

// ChainNode holds a term followed by a chain of field accesses.
type ChainNode struct {
	baseNode
	Node  Node
	Field []string // the identifiers in lexical order
}

func (t *Tree) newChain(pos int, node Node) *ChainNode {
	return &ChainNode{baseNode: baseNode{tr: t, typ: NodeChain, Pos: pos}, Node: node}
}

// add appends the named field (which should start with a dot) to the
// end of the chain.
func (c *ChainNode) add(field string) {
	if len(field) == 0 || field[0] != '.' {
		c.tr.errorf("no dot in field")
	}
	field = field[1:]
	if field == "" {
		c.tr.errorf("empty field")
	}
	c.Field = append(c.Field, field)
}

func (c *ChainNode) String() string {
	var sb strings.Builder
	if c.Node.Type() == NodePipe {
		sb.WriteString("(" + c.Node.String() + ")")
	} else {
		sb.WriteString(c.Node.String())
	}
	for _, f := range c.Field {
		sb.WriteString("." + f)
	}
	return sb.String()
}

// BoolNode holds a boolean constant.
type BoolNode struct {
	baseNode
	True bool
}

func (t *Tree) newBool(pos int, truth bool) *BoolNode {
	return &BoolNode{baseNode: baseNode{tr: t, typ: NodeBool, Pos: pos}, True: truth}
}

func (n *BoolNode) String() string {
	if n.True {
		return "true"
	}
	return "false"
}

// NumberNode holds a number: integer or float. The value is parsed and
// stored under both representations where they apply, so the executor
// can pick the view suggested by the literal's syntax.
type NumberNode struct {
	baseNode
	IsInt   bool
	IsFloat bool
	Int     int
	Float   float64
	Text    string // the original textual representation from the input
}

func (n *NumberNode) String() string { return n.Text }

// StringNode holds a string constant; the value has been unquoted.
type StringNode struct {
	baseNode
	Quoted string // the original text of the string, with quotes
	Text   string // the string, after quote processing
}

func (t *Tree) newString(pos int, orig, text string) *StringNode {
	return &StringNode{baseNode: baseNode{tr: t, typ: NodeString, Pos: pos}, Quoted: orig, Text: text}
}

func (n *StringNode) String() string { return n.Quoted }

// endNode represents an {{end}} action. It does not appear in the final
// parse tree.
type endNode struct {
	baseNode
}

func (t *Tree) newEnd(pos int) *endNode {
	return &endNode{baseNode: baseNode{tr: t, typ: NodeEnd, Pos: pos}}
}

func (n *endNode) String() string { return "{{end}}" }

// elseNode represents an {{else}} action. It does not appear in the
// final parse tree.
type elseNode struct {
	baseNode
}

func (t *Tree) newElse(pos int) *elseNode {
	return &elseNode{baseNode: baseNode{tr: t, typ: NodeElse, Pos: pos}}
}

func (n *elseNode) String() string { return "{{else}}" }

// BranchNode is the common representation of if, for and with.
type BranchNode struct {
	baseNode
	Pipe     *PipeNode // the pipeline to be evaluated
	List     *ListNode // what to execute if the value is truthy
	ElseList *ListNode // what to execute if the value is falsy (nil if absent)
}

func (n *BranchNode) String() string {
	var name string
	switch n.typ {
	case NodeIf:
		name = "if"
	case NodeFor:
		name = "for"
	case NodeWith:
		name = "with"
	default:
		return "unknown branch type"
	}
	if n.ElseList != nil {
		return fmt.Sprintf("{{%s %s}}%s{{else}}%s{{end}}", name, n.Pipe, n.List, n.ElseList)
	}
	return fmt.Sprintf("{{%s %s}}%s{{end}}", name, n.Pipe, n.List)
}

// IfNode represents an {{if}} action and its commands.
type IfNode struct {
	BranchNode
}

func (t *Tree) newIf(pos int, pipe *PipeNode, list, elseList *ListNode) *IfNode {
	return &IfNode{BranchNode{baseNode: baseNode{tr: t, typ: NodeIf, Pos: pos}, Pipe: pipe, List: list, ElseList: elseList}}
}

// ForNode represents a {{for}} action and its commands.
type ForNode struct {
	BranchNode
}

func (t *Tree) newFor(pos int, pipe *PipeNode, list, elseList *ListNode) *ForNode {
	return &ForNode{BranchNode{baseNode: baseNode{tr: t, typ: NodeFor, Pos: pos}, Pipe: pipe, List: list, ElseList: elseList}}
}

// WithNode represents a {{with}} action and its commands.
type WithNode struct {
	BranchNode
}

func (t *Tree) newWith(pos int, pipe *PipeNode, list, elseList *ListNode) *WithNode {
	return &WithNode{BranchNode{baseNode: baseNode{tr: t, typ: NodeWith, Pos: pos}, Pipe: pipe, List: list, ElseList: elseList}}
}

// BreakNode represents a {{break}} action.
type BreakNode struct {
	baseNode
}

func (t *Tree) newBreak(pos int) *BreakNode {
	return &BreakNode{baseNode: baseNode{tr: t, typ: NodeBreak, Pos: pos}}
}

func (n *BreakNode) String() string { return "{{break}}" }

// ContinueNode represents a {{continue}} action.
type ContinueNode struct {
	baseNode
}

func (t *Tree) newContinue(pos int) *ContinueNode {
	return &ContinueNode{baseNode: baseNode{tr: t, typ: NodeContinue, Pos: pos}}
}

func (n *ContinueNode) String() string { return "{{continue}}" }

// TemplateNode represents a {{template}} action.
type TemplateNode struct {
	baseNode
	Name string    // the name of the template (unquoted)
	Pipe *PipeNode // the command to evaluate as dot for the template
}

func (t *Tree) newTemplate(pos int, name string, pipe *PipeNode) *TemplateNode {
	return &TemplateNode{baseNode: baseNode{tr: t, typ: NodeTemplate, Pos: pos}, Name: name, Pipe: pipe}
}

func (n *TemplateNode) String() string {
	if n.Pipe == nil {
		return fmt.Sprintf("{{template %q}}", n.Name)
	}
	return fmt.Sprintf("{{template %q %s}}", n.Name, n.Pipe)
}
