package syntax

// Node is a top-level statement or one of its binding parts
type Node interface {
	Span() Span
	node()
}

type base struct {
	span Span
}

func (b *base) Span() Span { return b.span }
func (*base) node()        {}

// Program is a whole source file
type Program struct {
	base
	Body     []Node
	Comments []Comment
}

// ExportNamed is `export <declaration>`
type ExportNamed struct {
	base
	Decl    Node
	Keyword Span
}

// ExportDefault is `export default <declaration or expression>`
type ExportDefault struct {
	base
	Decl   Node
	Clause Span
}

// ExportList is `export { a, b as c }`, optionally re-exported from a module
type ExportList struct {
	base
	Specifiers []*ExportSpecifier
	From       string
	All        bool
}

// ExportSpecifier is one entry of an export list
type ExportSpecifier struct {
	base
	Local    *Identifier
	Exported *Identifier
}

// ImportDecl is a static import declaration
type ImportDecl struct {
	base
	Source string
}

// VarDecl is a var/let/const declaration
type VarDecl struct {
	base
	Kind        string
	Declarators []*Declarator
}

// Declarator binds a pattern with an optional initializer
type Declarator struct {
	base
	ID   Node
	Init *Expression
}

// FunctionDecl is a function declaration or default-exported function
type FunctionDecl struct {
	base
	Name      *Identifier
	Async     bool
	Generator bool
}

// ClassDecl is a class declaration or default-exported class
type ClassDecl struct {
	base
	Name *Identifier
}

// Identifier is a bound or referenced name
type Identifier struct {
	base
	Name string
}

// ObjectPattern is a destructuring object pattern
type ObjectPattern struct {
	base
	Properties []Node
}

// ArrayPattern is a destructuring array pattern. Holes are nil.
type ArrayPattern struct {
	base
	Elements []Node
}

// RestElement is `...target` inside a pattern
type RestElement struct {
	base
	Arg Node
}

// AssignmentPattern is `target = default` inside a pattern
type AssignmentPattern struct {
	base
	Left Node
}

// Expression is an expression whose inner structure is not modelled
type Expression struct {
	base
}

// Statement is any other top-level statement
type Statement struct {
	base
}
