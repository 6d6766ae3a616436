// Package transform turns component source into runnable script text.
//
// A commit is parsed with the syntax package, its comments are removed,
// its single export is unwrapped into a plain top-level binding and the
// result is transpiled by esbuild so JSX becomes React.createElement calls.
//
// Rules:
//   - exactly one named export: the export keyword is dropped and the first
//     bound identifier is the exported symbol
//   - otherwise exactly one default export: the clause is dropped and the
//     declaration name is the symbol; anonymous defaults are bound to
//     DivPanelDefault
//   - anything else, including imports and re-exports, is a ParseError
//
// Example:
//
//	p := transform.NewPipeline()
//	res, err := p.Transform("export const Hello = () => <b>hi</b>")
//	// res.ExportedSymbolName == "Hello"
package transform
