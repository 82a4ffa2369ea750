package reduce

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/ast/inspector"
)

const debugGoFrontEnd = false

func init() {
	registerFrontEnd(goFrontEnd{})
}

type goFrontEnd struct{}

func (goFrontEnd) Language() string {
	return "go"
}

func (goFrontEnd) Extensions() []string {
	return []string{".go"}
}

// Parse parses a single Go file. Identifier binding uses type information when the file
// type-checks on its own, and falls back to a syntactic scope scan otherwise.
// CacheScope returns the import path of the file's module package, since callee identities in
// the analysis carry it.
func (goFrontEnd) CacheScope(filename string) string {
	return goModulePackagePath(filename)
}

func (goFrontEnd) Parse(filename string, src []byte) (*Unit, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("ast parse failure %s: %w", filename, err)
	}

	b := &goUnitBuilder{
		unit:    newUnit(filename, "go", src),
		tokFile: fset.File(file.Pos()),
		pkgPath: goPackagePath(filename, file),
		info:    goTypesInfo(fset, file),
		ids:     make(map[ast.Node]NodeID),
		decls:   make(map[types.Object]NodeID),
		funcs:   make(map[string]bool),
	}
	if debugGoFrontEnd {
		log.Printf("go front end: %s package=%s typed=%v", filename, b.pkgPath, b.info != nil)
	}
	b.build(file)
	return b.unit, nil
}

type goUnitBuilder struct {
	unit    *Unit
	tokFile *token.File
	pkgPath string
	info    *types.Info // nil when the file does not type-check
	ids     map[ast.Node]NodeID
	decls   map[types.Object]NodeID // parameter objects to their declaring handle
	funcs   map[string]bool         // package level function names
}

func (b *goUnitBuilder) build(file *ast.File) {
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Recv == nil {
			b.funcs[fd.Name.Name] = true
		}
	}

	insp := inspector.New([]*ast.File{file})
	filter := []ast.Node{(*ast.FuncDecl)(nil), (*ast.CallExpr)(nil)}
	insp.WithStack(filter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		switch node := n.(type) {
		case *ast.FuncDecl:
			b.visitFuncDecl(node)
		case *ast.CallExpr:
			b.visitCallExpr(node, stack)
		}
		return true
	})
}

// node returns the handle for n, allocating one on first use.
func (b *goUnitBuilder) node(n ast.Node) NodeID {
	if id, ok := b.ids[n]; ok {
		return id
	}
	id := b.unit.addNode(b.rangeOf(n.Pos(), n.End()))
	b.ids[n] = id
	return id
}

// rangeOf converts positions to file offsets without risking the token.File panics on
// positions outside of the file.
func (b *goUnitBuilder) rangeOf(pos, end token.Pos) Range {
	if b.tokFile == nil || !pos.IsValid() || !end.IsValid() {
		return invalidRange
	}
	base := b.tokFile.Base()
	if int(pos) < base || int(end) > base+b.tokFile.Size() {
		return invalidRange
	}
	return Range{Start: int(pos) - base, End: int(end) - base}
}

func (b *goUnitBuilder) visitFuncDecl(decl *ast.FuncDecl) {
	if decl.Recv != nil || decl.Type.TypeParams != nil {
		return // methods and generic functions are not call-through candidates
	} else if name := decl.Name.Name; name == "init" || name == "_" {
		return
	}

	fn := FuncDecl{
		Node:    b.node(decl),
		Ident:   makeFunctionIdentStr(b.pkgPath, decl.Name.Name),
		Name:    decl.Name.Name,
		Void:    decl.Type.Results.NumFields() == 0,
		HasBody: decl.Body != nil,
	}
	scope := make(map[string]NodeID)
	if decl.Type.Params != nil {
		for i, field := range decl.Type.Params.List {
			if _, ok := field.Type.(*ast.Ellipsis); ok && i == len(decl.Type.Params.List)-1 {
				fn.Variadic = true
			}
			if len(field.Names) == 0 {
				fn.Params = append(fn.Params, Param{Node: b.node(field.Type)})
				continue
			}
			for _, name := range field.Names {
				pn := b.node(name)
				fn.Params = append(fn.Params, Param{Node: pn, Name: name.Name})
				if name.Name != "_" {
					scope[name.Name] = pn
				}
				if b.info != nil {
					if obj := b.info.Defs[name]; obj != nil {
						b.decls[obj] = pn
					}
				}
			}
		}
	}

	if decl.Body != nil {
		for _, stmt := range decl.Body.List {
			s := Stmt{Node: b.node(stmt)}
			if ret, ok := stmt.(*ast.ReturnStmt); ok {
				s.Kind = StmtReturn
				for _, result := range ret.Results {
					rn := b.node(result)
					s.Results = append(s.Results, rn)
					b.unit.idents[rn] = b.exprIdents(result, scope)
				}
			}
			fn.Body = append(fn.Body, s)
		}
	}
	b.unit.addFunc(fn)
}

func (b *goUnitBuilder) visitCallExpr(call *ast.CallExpr, stack []ast.Node) {
	ce := CallExpr{
		Node:   b.node(call),
		Spread: call.Ellipsis.IsValid(),
	}
	if id, ok := ast.Unparen(call.Fun).(*ast.Ident); ok {
		ce.Callee = b.calleeIdent(id)
	}
	if len(stack) > 1 {
		switch parent := stack[len(stack)-2].(type) {
		case *ast.DeferStmt:
			ce.Deferred = parent.Call == call
		case *ast.GoStmt:
			ce.Deferred = parent.Call == call
		}
	}
	for _, arg := range call.Args {
		ce.Args = append(ce.Args, b.node(arg))
	}
	b.unit.addCall(ce)
}

// calleeIdent resolves a called identifier to a package level function identity.
func (b *goUnitBuilder) calleeIdent(id *ast.Ident) string {
	if b.info != nil {
		fn, ok := b.info.Uses[id].(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Parent() != fn.Pkg().Scope() {
			return ""
		}
		return makeFunctionIdentStr(b.pkgPath, fn.Name())
	} else if b.funcs[id.Name] {
		// without types a local of function type with the same name is indistinguishable
		return makeFunctionIdentStr(b.pkgPath, id.Name)
	}
	return ""
}

// exprIdents lists the identifiers of expr, binding those that refer to a parameter.
func (b *goUnitBuilder) exprIdents(expr ast.Expr, scope map[string]NodeID) []Ident {
	var result []Ident
	if b.info != nil {
		ast.Inspect(expr, func(n ast.Node) bool {
			id, ok := n.(*ast.Ident)
			if !ok {
				return true
			}
			decl := NoNode
			if obj := b.info.Uses[id]; obj != nil {
				if pn, ok := b.decls[obj]; ok {
					decl = pn
				}
			}
			result = append(result, Ident{Node: b.node(id), Range: b.rangeOf(id.Pos(), id.End()), Decl: decl})
			return true
		})
		return result
	}
	b.syntacticIdents(expr, scope, nil, &result)
	return result
}

// syntacticIdents is the untyped fallback. Names declared anywhere inside a function literal
// shadow the parameters for the whole literal.
func (b *goUnitBuilder) syntacticIdents(n ast.Node, scope map[string]NodeID, shadowed map[string]bool, out *[]Ident) {
	ast.Inspect(n, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.SelectorExpr:
			b.syntacticIdents(node.X, scope, shadowed, out)
			return false
		case *ast.CompositeLit:
			if node.Type != nil {
				b.syntacticIdents(node.Type, scope, shadowed, out)
			}
			_, isMap := node.Type.(*ast.MapType)
			for _, elt := range node.Elts {
				if kv, ok := elt.(*ast.KeyValueExpr); ok && !isMap {
					b.syntacticIdents(kv.Value, scope, shadowed, out) // struct field keys are not references
				} else {
					b.syntacticIdents(elt, scope, shadowed, out)
				}
			}
			return false
		case *ast.FuncLit:
			inner := make(map[string]bool, len(shadowed))
			for name := range shadowed {
				inner[name] = true
			}
			for _, name := range funcLitDefs(node) {
				inner[name] = true
			}
			b.syntacticIdents(node.Body, scope, inner, out)
			return false
		case *ast.Ident:
			decl := NoNode
			if pn, ok := scope[node.Name]; ok && !shadowed[node.Name] {
				decl = pn
			}
			*out = append(*out, Ident{Node: b.node(node), Range: b.rangeOf(node.Pos(), node.End()), Decl: decl})
		}
		return true
	})
}

// funcLitDefs returns every name declared by the literal's signature or within its body.
func funcLitDefs(lit *ast.FuncLit) []string {
	var names []string
	addFields := func(fl *ast.FieldList) {
		if fl == nil {
			return
		}
		for _, f := range fl.List {
			for _, n := range f.Names {
				names = append(names, n.Name)
			}
		}
	}
	addFields(lit.Type.Params)
	addFields(lit.Type.Results)
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						names = append(names, id.Name)
					}
				}
			}
		case *ast.ValueSpec:
			for _, id := range node.Names {
				names = append(names, id.Name)
			}
		case *ast.RangeStmt:
			if node.Tok == token.DEFINE {
				for _, e := range []ast.Expr{node.Key, node.Value} {
					if id, ok := e.(*ast.Ident); ok {
						names = append(names, id.Name)
					}
				}
			}
		case *ast.FuncLit:
			addFields(node.Type.Params)
			addFields(node.Type.Results)
		}
		return true
	})
	return names
}

// goTypesInfo type-checks the single file. On any failure it returns nil so callers fall
// back to a syntactic scan.
func goTypesInfo(fset *token.FileSet, file *ast.File) *types.Info {
	info := &types.Info{
		Defs: make(map[*ast.Ident]types.Object),
		Uses: make(map[*ast.Ident]types.Object),
	}
	cfg := &types.Config{
		Importer: importer.Default(),
		Error:    func(error) {}, // ignore type errors, we fall back on any failure
	}
	if _, err := cfg.Check(file.Name.Name, fset, []*ast.File{file}, info); err != nil {
		return nil
	}
	return info
}

// goPackagePath derives the import path of the file's package from the closest go.mod,
// falling back to the package clause name.
func goPackagePath(filename string, file *ast.File) string {
	if pkgPath := goModulePackagePath(filename); pkgPath != "" {
		return pkgPath
	}
	return file.Name.Name
}

// goModulePackagePath returns the import path of the directory holding filename, or an empty
// string when no enclosing go.mod declares a module.
func goModulePackagePath(filename string) string {
	absDir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return ""
	}
	for dir := absDir; ; dir = filepath.Dir(dir) {
		if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return ""
			}
			rel, err := filepath.Rel(dir, absDir)
			if err != nil || rel == "." {
				return modPath
			}
			return modPath + "/" + filepath.ToSlash(rel)
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

func makeFunctionIdentStr(pkg, funcName string) string {
	return pkg + ":" + funcName
}
