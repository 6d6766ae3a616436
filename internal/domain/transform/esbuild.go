package transform

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	jsxFactory  = "React.createElement"
	jsxFragment = "React.Fragment"
)

var transformOptions = api.TransformOptions{
	Loader:      api.LoaderJSX,
	Target:      api.ES2015,
	JSX:         api.JSXTransform,
	JSXFactory:  jsxFactory,
	JSXFragment: jsxFragment,
	// Tagged templates must reach the runtime untouched for the css helper
	Supported:     map[string]bool{"template-literal": true},
	LegalComments: api.LegalCommentsNone,
	Sourcefile:    "panel.jsx",
	LogLevel:      api.LogLevelSilent,
}

// transpile lowers cleaned source to ES2015 with JSX compiled away
func transpile(code string) (string, error) {
	result := api.Transform(code, transformOptions)
	if len(result.Errors) > 0 {
		return "", messageError(result.Errors)
	}
	return string(result.Code), nil
}

func messageError(msgs []api.Message) *ParseError {
	first := msgs[0]
	pe := &ParseError{Message: first.Text}
	if first.Location != nil {
		pe.Line = first.Location.Line
		pe.Column = first.Location.Column + 1
	}
	if len(msgs) > 1 {
		texts := make([]string, 0, len(msgs)-1)
		for _, m := range msgs[1:] {
			texts = append(texts, m.Text)
		}
		pe.Message += " (also: " + strings.Join(texts, "; ") + ")"
	}
	return pe
}
