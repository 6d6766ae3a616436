package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GriffinCanCode/divpanel/internal/domain/transform/syntax"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultSymbol is bound to an anonymous default export
const DefaultSymbol = "DivPanelDefault"

const defaultMemoSize = 256

// Result is the runnable form of one commit
type Result struct {
	TransformedCode    string `json:"transformedCode"`
	ExportedSymbolName string `json:"exportedSymbolName"`
}

// Pipeline transforms commits and memoizes results by content hash
type Pipeline struct {
	memo     *lru.Cache[string, Result]
	memoSize int
	logger   *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMemoSize bounds the number of memoized results
func WithMemoSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.memoSize = n
		}
	}
}

// NewPipeline creates a transform pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		memoSize: defaultMemoSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	// Size is always positive here
	p.memo, _ = lru.New[string, Result](p.memoSize)
	return p
}

// Transform returns the runnable form of source. Identical sources are
// served from the memo.
func (p *Pipeline) Transform(source string) (*Result, error) {
	key := utils.Digest(source)
	if cached, ok := p.memo.Get(key); ok {
		res := cached
		return &res, nil
	}

	start := time.Now()
	res, err := Transform(source)
	if err != nil {
		p.logger.Debug("transform failed", zap.Error(err))
		return nil, err
	}

	p.memo.Add(key, *res)
	p.logger.Debug("transformed source",
		zap.String("symbol", res.ExportedSymbolName),
		zap.String("hash", key[:12]),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Cached reports how many results are memoized
func (p *Pipeline) Cached() int {
	return p.memo.Len()
}

// Transform runs the pipeline on source without memoization
func Transform(source string) (*Result, error) {
	prog, err := syntax.Parse(source)
	if err != nil {
		return nil, fromSyntax(err)
	}

	edits := commentEdits(source, prog.Comments)
	symbol, exportEdits, err := unwrapExport(source, prog)
	if err != nil {
		return nil, err
	}
	cleaned := applyEdits(source, append(edits, exportEdits...))

	code, err := transpile(cleaned)
	if err != nil {
		return nil, err
	}
	return &Result{TransformedCode: code, ExportedSymbolName: symbol}, nil
}

// edit replaces span with text
type edit struct {
	span syntax.Span
	text string
}

func commentEdits(src string, comments []syntax.Comment) []edit {
	edits := make([]edit, 0, len(comments))
	for _, c := range comments {
		text := ""
		if c.Block {
			text = " "
			if strings.ContainsAny(src[c.Range.Start:c.Range.End], "\n\r\u2028\u2029") {
				text = "\n"
			}
		}
		edits = append(edits, edit{span: c.Range, text: text})
	}
	return edits
}

func unwrapExport(src string, prog *syntax.Program) (string, []edit, error) {
	named, defaults, imports := syntax.Exports(prog)
	if len(imports) > 0 {
		return "", nil, errorAt(src, imports[0].Span(), "import declarations are not supported")
	}

	switch {
	case len(named) == 1 && len(defaults) == 0:
		return unwrapNamed(src, named[0])
	case len(defaults) == 1 && len(named) == 0:
		return unwrapDefault(defaults[0])
	case len(named)+len(defaults) == 0:
		return "", nil, &ParseError{Message: "no export found: expected exactly one export declaration"}
	}

	// Point at the second export
	all := append(append([]syntax.Node{}, named...), nodes(defaults)...)
	sort.Slice(all, func(i, j int) bool { return all[i].Span().Start < all[j].Span().Start })
	return "", nil, errorAt(src, all[1].Span(),
		fmt.Sprintf("found %d exports: expected exactly one export declaration", len(all)))
}

func unwrapNamed(src string, n syntax.Node) (string, []edit, error) {
	switch v := n.(type) {
	case *syntax.ExportNamed:
		id := syntax.FindIdentifier(v.Decl)
		if id == nil {
			return "", nil, errorAt(src, v.Span(), "export declaration binds no identifier")
		}
		return id.Name, []edit{{span: v.Keyword}}, nil

	case *syntax.ExportList:
		if v.All || v.From != "" {
			return "", nil, errorAt(src, v.Span(), "re-exports are not supported")
		}
		if len(v.Specifiers) == 0 {
			return "", nil, errorAt(src, v.Span(), "empty export list")
		}
		return v.Specifiers[0].Local.Name, []edit{{span: v.Span()}}, nil
	}
	return "", nil, errorAt(src, n.Span(), "unsupported export")
}

func unwrapDefault(def *syntax.ExportDefault) (string, []edit, error) {
	var name *syntax.Identifier
	switch decl := def.Decl.(type) {
	case *syntax.FunctionDecl:
		name = decl.Name
	case *syntax.ClassDecl:
		name = decl.Name
	case *syntax.Identifier:
		name = decl
	}
	if name != nil {
		return name.Name, []edit{{span: def.Clause}}, nil
	}

	end := def.Decl.Span().End
	return DefaultSymbol, []edit{
		{span: def.Clause, text: "const " + DefaultSymbol + " ="},
		{span: syntax.Span{Start: end, End: end}, text: ";"},
	}, nil
}

// applyEdits rewrites src. Edits inside an earlier edit are dropped.
func applyEdits(src string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].span.Start != edits[j].span.Start {
			return edits[i].span.Start < edits[j].span.Start
		}
		return edits[i].span.End < edits[j].span.End
	})

	var b strings.Builder
	b.Grow(len(src))
	cursor := 0
	for _, e := range edits {
		if e.span.Start < cursor {
			continue
		}
		b.WriteString(src[cursor:e.span.Start])
		b.WriteString(e.text)
		cursor = e.span.End
	}
	b.WriteString(src[cursor:])
	return b.String()
}

func errorAt(src string, span syntax.Span, msg string) *ParseError {
	line, col := syntax.Position(src, span.Start)
	return &ParseError{Message: msg, Line: line, Column: col}
}

func fromSyntax(err error) error {
	var serr *syntax.Error
	if errors.As(err, &serr) {
		return &ParseError{Message: serr.Msg, Line: serr.Line, Column: serr.Column}
	}
	return &ParseError{Message: err.Error()}
}

func nodes(defaults []*syntax.ExportDefault) []syntax.Node {
	out := make([]syntax.Node, len(defaults))
	for i, d := range defaults {
		out[i] = d
	}
	return out
}
