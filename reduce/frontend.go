package reduce

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedLanguage is returned when no front end handles the requested file or language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// NodeID is an opaque handle to a node owned by a Unit.
type NodeID int32

// NoNode is the zero handle, never assigned to a node.
const NoNode NodeID = -1

// Range is a half-open byte range [Start, End) within a Unit's source.
type Range struct {
	Start int `msgpack:"s" json:"start"`
	End   int `msgpack:"e" json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// within reports if the range is well-formed and fits inside a buffer of the given size.
func (r Range) within(size int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= size
}

var invalidRange = Range{Start: -1, End: -1}

// StmtKind classifies the top-level statements of a function body.
type StmtKind uint8

const (
	StmtOther StmtKind = iota
	StmtReturn
)

// Param is one formal parameter, in declaration order.
type Param struct {
	// Node is the handle of the parameter's declaring identifier.
	Node NodeID
	// Name is empty for unnamed parameters.
	Name string
}

// Stmt is one top-level statement of a function body.
type Stmt struct {
	Node NodeID
	Kind StmtKind
	// Results holds the returned expressions of a return statement.
	Results []NodeID
}

// FuncDecl describes a top-level function declaration as reported by a front end.
type FuncDecl struct {
	Node NodeID
	// Ident is the identity shared by the declaration and the calls that target it.
	Ident string
	Name  string
	// Params are the formal parameters in positional order.
	Params []Param
	// Variadic is set when the last parameter accepts a variable argument count.
	Variadic bool
	// Void is set when the function produces no value.
	Void bool
	// HasBody is false for prototypes and externally implemented functions.
	HasBody bool
	Body    []Stmt
}

// CallExpr describes one call expression as reported by a front end.
type CallExpr struct {
	Node NodeID
	// Callee is the Ident of the directly called function, empty for indirect calls.
	Callee string
	Args   []NodeID
	// Spread is set for calls that pass a slice as the variadic argument list.
	Spread bool
	// Deferred is set when the call is the operand of a statement that requires a call.
	Deferred bool
}

// Ident is an identifier reference within an expression.
type Ident struct {
	Node  NodeID
	Range Range
	// Decl is the handle of the declaration the identifier resolves to, NoNode when unresolved.
	Decl NodeID
}

// Visitor receives the declarations and calls of a Unit in source order.
type Visitor interface {
	VisitFunc(fn FuncDecl)
	VisitCall(call CallExpr)
}

// FrontEnd parses one translation unit of a language.
type FrontEnd interface {
	// Language returns the short language name, e.g. "go" or "c".
	Language() string
	// Extensions lists the file extensions handled, including the leading dot.
	Extensions() []string
	// Parse builds a Unit from the source of a single file.
	Parse(filename string, src []byte) (*Unit, error)
}

// cacheScoper is implemented by front ends whose analysis depends on the file location as well
// as its source bytes.
type cacheScoper interface {
	CacheScope(filename string) string
}

// frontEnds is the registry of available front ends, keyed by language.
var frontEnds = map[string]FrontEnd{}

func registerFrontEnd(fe FrontEnd) {
	frontEnds[fe.Language()] = fe
}

// FrontEndForLanguage returns the front end registered for the language name.
func FrontEndForLanguage(language string) (FrontEnd, error) {
	if fe, ok := frontEnds[strings.ToLower(language)]; ok {
		return fe, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
}

// FrontEndForFile returns the front end handling the file's extension.
func FrontEndForFile(filename string) (FrontEnd, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, lang := range Languages() {
		if slices.Contains(frontEnds[lang].Extensions(), ext) {
			return frontEnds[lang], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filename)
}

// Languages returns the registered language names in sorted order.
func Languages() []string {
	langs := make([]string, 0, len(frontEnds))
	for l := range frontEnds {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

type walkItem struct {
	fn   *FuncDecl
	call *CallExpr
}

// Unit is a parsed translation unit. All nodes are owned by the unit and addressed by NodeID.
type Unit struct {
	filename string
	language string
	src      []byte
	ranges   []Range
	idents   map[NodeID][]Ident
	items    []walkItem
}

func newUnit(filename, language string, src []byte) *Unit {
	return &Unit{
		filename: filename,
		language: language,
		src:      src,
		idents:   make(map[NodeID][]Ident),
	}
}

// Filename returns the name the unit was parsed from.
func (u *Unit) Filename() string {
	return u.filename
}

// Language returns the language of the front end that built the unit.
func (u *Unit) Language() string {
	return u.language
}

// Source returns the unit's source buffer. It must not be modified.
func (u *Unit) Source() []byte {
	return u.src
}

// addNode allocates a handle for a node spanning r. Ranges that do not fit the source are
// kept, they only fail once resolved.
func (u *Unit) addNode(r Range) NodeID {
	u.ranges = append(u.ranges, r)
	return NodeID(len(u.ranges) - 1)
}

func (u *Unit) addFunc(fn FuncDecl) {
	u.items = append(u.items, walkItem{fn: &fn})
}

func (u *Unit) addCall(call CallExpr) {
	u.items = append(u.items, walkItem{call: &call})
}

// Range returns the source range of the node.
func (u *Unit) Range(n NodeID) (Range, error) {
	if n < 0 || int(n) >= len(u.ranges) {
		return invalidRange, fmt.Errorf("%w: unknown node %d", ErrOffsetResolution, n)
	}
	r := u.ranges[n]
	if !r.within(len(u.src)) {
		return invalidRange, fmt.Errorf("%w: node %d range %d:%d", ErrOffsetResolution, n, r.Start, r.End)
	}
	return r, nil
}

// Text returns the verbatim source text of the node.
func (u *Unit) Text(n NodeID) (string, error) {
	r, err := u.Range(n)
	if err != nil {
		return "", err
	}
	return string(u.src[r.Start:r.End]), nil
}

// TextRange returns the verbatim source text for a range.
func (u *Unit) TextRange(r Range) (string, error) {
	return Buffer(u.src).TextRange(r)
}

// Idents returns the identifier references inside the expression node in source order.
// Only expressions returned from a function body are indexed.
func (u *Unit) Idents(n NodeID) []Ident {
	return u.idents[n]
}

// Walk reports every function declaration and call expression of the unit in source order.
func (u *Unit) Walk(v Visitor) {
	for _, item := range u.items {
		if item.fn != nil {
			v.VisitFunc(*item.fn)
		} else {
			v.VisitCall(*item.call)
		}
	}
}

// Buffer exposes range text extraction over raw source bytes, used when a cached Result is
// applied without a parsed Unit.
type Buffer []byte

// TextRange returns the verbatim text for the range.
func (b Buffer) TextRange(r Range) (string, error) {
	if !r.within(len(b)) {
		return "", fmt.Errorf("%w: range %d:%d outside of %d bytes", ErrOffsetResolution, r.Start, r.End, len(b))
	}
	return string(b[r.Start:r.End]), nil
}

// TextSource provides verbatim text for source ranges.
type TextSource interface {
	TextRange(r Range) (string, error)
}
