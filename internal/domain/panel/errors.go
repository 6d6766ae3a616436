package panel

import (
	"errors"
	"html"
)

var (
	ErrNotFound = errors.New("panel not found")
	ErrExists   = errors.New("panel already exists")
	ErrClosed   = errors.New("panel is closed")
	ErrMode     = errors.New("unknown panel mode")
)

// Placeholder is the root markup while the command is clear
const Placeholder = "<div>Clear and unmount complete</div>"

// errorMarkup renders err for display in place of the panel body
func errorMarkup(err error) string {
	return `<div class="div-panel-error"><pre>` + html.EscapeString(err.Error()) + `</pre></div>`
}
