package types

import "time"

// Mode selects how panel content is interpreted
type Mode string

const (
	// ModeHTML treats content as an HTML document with scripts
	ModeHTML Mode = "html"
	// ModeComponent treats content as JSX/JS exporting one component
	ModeComponent Mode = "component"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeHTML || m == ModeComponent
}

// OrDefault returns m, or ModeHTML when m is empty
func (m Mode) OrDefault() Mode {
	if m == "" {
		return ModeHTML
	}
	return m
}

// Command is the current orchestrator command
type Command string

const (
	CommandRender Command = "render"
	CommandClear  Command = "clear"
)

// PanelOptions is the persisted per-panel configuration.
// Transformed and ExportedFn always derive from the same Content.
type PanelOptions struct {
	Content     string `json:"content" yaml:"content" toml:"content"`
	Transformed string `json:"transformed,omitempty" yaml:"transformed,omitempty" toml:"transformed,omitempty"`
	ExportedFn  string `json:"exportedFn,omitempty" yaml:"exportedFn,omitempty" toml:"exportedFn,omitempty"`
	Mode        Mode   `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// PanelState is the session-scoped lifecycle state
type PanelState struct {
	Command  Command `json:"command"`
	EditMode bool    `json:"editMode"`
}

// MountKind describes where the last render placed its output
type MountKind string

const (
	MountPlaceholder MountKind = "placeholder"
	MountWrapped     MountKind = "wrapped"
	MountDirect      MountKind = "direct"
)

// PanelInfo is the listing view of a panel
type PanelInfo struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Mode      Mode       `json:"mode"`
	State     PanelState `json:"state"`
	HasError  bool       `json:"has_error"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RenderResult is what a lifecycle operation produced in the panel root
type RenderResult struct {
	PanelID  string        `json:"panel_id"`
	HTML     string        `json:"html"`
	Mount    MountKind     `json:"mount"`
	Console  []ConsoleLine `json:"console,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ConsoleLine is one captured console call
type ConsoleLine struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
