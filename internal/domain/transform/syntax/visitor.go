package syntax

// Walk visits n and its children depth-first. Children are skipped when
// fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	switch v := n.(type) {
	case *Program:
		for _, stmt := range v.Body {
			Walk(stmt, fn)
		}
	case *ExportNamed:
		Walk(v.Decl, fn)
	case *ExportDefault:
		Walk(v.Decl, fn)
	case *ExportList:
		for _, spec := range v.Specifiers {
			Walk(spec, fn)
		}
	case *ExportSpecifier:
		if v.Local != nil {
			Walk(v.Local, fn)
		}
	case *VarDecl:
		for _, d := range v.Declarators {
			Walk(d, fn)
		}
	case *Declarator:
		Walk(v.ID, fn)
		if v.Init != nil {
			Walk(v.Init, fn)
		}
	case *FunctionDecl:
		if v.Name != nil {
			Walk(v.Name, fn)
		}
	case *ClassDecl:
		if v.Name != nil {
			Walk(v.Name, fn)
		}
	case *ObjectPattern:
		for _, prop := range v.Properties {
			Walk(prop, fn)
		}
	case *ArrayPattern:
		for _, elem := range v.Elements {
			if elem != nil {
				Walk(elem, fn)
			}
		}
	case *RestElement:
		Walk(v.Arg, fn)
	case *AssignmentPattern:
		Walk(v.Left, fn)
	}
}

// FindIdentifier returns the first identifier bound below n, searching
// declarations and declarators depth-first. It returns nil when none is
// bound, as with an anonymous default export.
func FindIdentifier(n Node) *Identifier {
	var found *Identifier
	Walk(n, func(node Node) bool {
		if found != nil {
			return false
		}
		if id, ok := node.(*Identifier); ok {
			found = id
			return false
		}
		return true
	})
	return found
}

// Exports splits the top-level export statements of prog
func Exports(prog *Program) (named []Node, defaults []*ExportDefault, imports []*ImportDecl) {
	for _, stmt := range prog.Body {
		switch v := stmt.(type) {
		case *ExportNamed, *ExportList:
			named = append(named, v)
		case *ExportDefault:
			defaults = append(defaults, v)
		case *ImportDecl:
			imports = append(imports, v)
		}
	}
	return named, defaults, imports
}
