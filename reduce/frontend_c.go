package reduce

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

func init() {
	registerFrontEnd(cFrontEnd{})
}

type cFrontEnd struct{}

func (cFrontEnd) Language() string {
	return "c"
}

func (cFrontEnd) Extensions() []string {
	return []string{".c", ".h", ".i"}
}

// Parse parses a C translation unit with tree-sitter. The source is expected to be
// preprocessed already; nodes inside syntax errors are kept but fail offset resolution.
func (cFrontEnd) Parse(filename string, src []byte) (*Unit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse failure %s: %w", filename, err)
	}
	defer tree.Close()

	b := &cUnitBuilder{unit: newUnit(filename, "c", src), src: src}
	b.walk(tree.RootNode(), true)
	return b.unit, nil
}

type cUnitBuilder struct {
	unit *Unit
	src  []byte
}

func (b *cUnitBuilder) node(n *sitter.Node) NodeID {
	if n.HasError() || n.IsMissing() {
		return b.unit.addNode(invalidRange)
	}
	return b.unit.addNode(Range{Start: int(n.StartByte()), End: int(n.EndByte())})
}

func (b *cUnitBuilder) text(n *sitter.Node) string {
	return n.Content(b.src)
}

// walk visits n in pre-order so declarations and calls are reported in source order.
func (b *cUnitBuilder) walk(n *sitter.Node, topLevel bool) {
	switch n.Type() {
	case "function_definition":
		if topLevel {
			b.visitFunction(n, n.ChildByFieldName("body"))
		}
	case "declaration":
		if topLevel {
			if fd := functionDeclarator(n.ChildByFieldName("declarator")); fd != nil {
				b.visitFunction(n, nil)
			}
		}
	case "call_expression":
		b.visitCall(n)
	}

	childTop := n.Type() == "translation_unit" || (topLevel && scopeTransparent[n.Type()])
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.walk(n.NamedChild(i), childTop)
	}
}

// scopeTransparent lists the nodes whose children remain at file scope.
var scopeTransparent = map[string]bool{
	"linkage_specification": true,
	"declaration_list":      true,
	"preproc_if":            true,
	"preproc_ifdef":         true,
	"preproc_else":          true,
	"preproc_elif":          true,
}

// functionDeclarator unwraps pointer declarators down to the function declarator.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil && !n.IsNull() {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "parenthesized_declarator", "attributed_declarator":
			next := n.ChildByFieldName("declarator")
			if next == nil {
				next = firstNamedChild(n)
			}
			n = next
		default:
			return nil
		}
	}
	return nil
}

// declaratorName unwraps any declarator to its identifier.
func declaratorName(n *sitter.Node) *sitter.Node {
	for n != nil && !n.IsNull() {
		switch n.Type() {
		case "identifier":
			return n
		case "parenthesized_declarator":
			n = firstNamedChild(n)
		default:
			n = n.ChildByFieldName("declarator")
		}
	}
	return nil
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var children []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() != "comment" {
			children = append(children, child)
		}
	}
	return children
}

func (b *cUnitBuilder) visitFunction(n, body *sitter.Node) {
	declarator := n.ChildByFieldName("declarator")
	fdecl := functionDeclarator(declarator)
	if fdecl == nil {
		return
	}
	nameNode := declaratorName(fdecl.ChildByFieldName("declarator"))
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	fn := FuncDecl{
		Node:    b.node(n),
		Ident:   name,
		Name:    name,
		Void:    isVoidType(n.ChildByFieldName("type"), b.src) && declarator.Type() == "function_declarator",
		HasBody: body != nil,
	}

	scope := make(map[string]NodeID)
	for _, p := range namedChildren(fdecl.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "variadic_parameter":
			fn.Variadic = true
		case "parameter_declaration":
			pd := p.ChildByFieldName("declarator")
			if pd == nil {
				if isVoidType(p.ChildByFieldName("type"), b.src) {
					continue // f(void)
				}
				fn.Params = append(fn.Params, Param{Node: b.node(p)})
				continue
			}
			if id := declaratorName(pd); id != nil {
				pn := b.node(id)
				pname := b.text(id)
				fn.Params = append(fn.Params, Param{Node: pn, Name: pname})
				scope[pname] = pn
			} else {
				fn.Params = append(fn.Params, Param{Node: b.node(p)})
			}
		}
	}

	for _, stmt := range namedChildren(body) {
		s := Stmt{Node: b.node(stmt)}
		if stmt.Type() == "return_statement" {
			s.Kind = StmtReturn
			if results := namedChildren(stmt); len(results) > 0 {
				rn := b.node(results[0])
				s.Results = []NodeID{rn}
				b.unit.idents[rn] = b.exprIdents(results[0], scope)
			}
		}
		fn.Body = append(fn.Body, s)
	}
	b.unit.addFunc(fn)
}

func isVoidType(n *sitter.Node, src []byte) bool {
	return n != nil && n.Type() == "primitive_type" && n.Content(src) == "void"
}

func (b *cUnitBuilder) visitCall(n *sitter.Node) {
	call := CallExpr{Node: b.node(n)}
	if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
		call.Callee = b.text(fn)
	}
	for _, arg := range namedChildren(n.ChildByFieldName("arguments")) {
		call.Args = append(call.Args, b.node(arg))
	}
	b.unit.addCall(call)
}

// exprIdents lists the identifiers within expr. C expressions cannot declare names, so a
// parameter name always binds to the parameter.
func (b *cUnitBuilder) exprIdents(expr *sitter.Node, scope map[string]NodeID) []Ident {
	var result []Ident
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "identifier" {
			decl := NoNode
			if pn, ok := scope[b.text(n)]; ok {
				decl = pn
			}
			id := b.node(n)
			r, _ := b.unit.Range(id)
			result = append(result, Ident{Node: id, Range: r, Decl: decl})
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(expr)
	return result
}
