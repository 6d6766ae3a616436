package sandbox

import (
	"errors"
	"time"
)

var (
	ErrTimeout     = errors.New("execution timeout exceeded")
	ErrClosed      = errors.New("runtime is closed")
	ErrPoolClosed  = errors.New("sandbox pool is closed")
	ErrNotCallable = errors.New("value is not callable")
)

// Config defines runtime configuration
type Config struct {
	Timeout       time.Duration // Per-call execution timeout, zero disables
	MaxCallStack  int           // Maximum JS call stack depth
	EnableConsole bool          // Capture console.log/warn/error/info
	EnableDOM     bool          // Install document/window globals
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		EnableDOM:     true,
	}
}

// Result holds the outcome of a top-level script execution
type Result struct {
	Value    interface{}   // Completion value
	Console  []LogEntry    // Console output produced by the call
	Duration time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Binding is one named parameter of an evaluated function
type Binding struct {
	Name  string
	Value interface{}
}

// Bindings is an ordered parameter list
type Bindings []Binding

// Names returns the parameter names in order
func (b Bindings) Names() []string {
	names := make([]string, len(b))
	for i, binding := range b {
		names[i] = binding.Name
	}
	return names
}

// With returns a copy with name bound to value, replacing an existing binding
func (b Bindings) With(name string, value interface{}) Bindings {
	out := make(Bindings, 0, len(b)+1)
	replaced := false
	for _, binding := range b {
		if binding.Name == name {
			binding.Value = value
			replaced = true
		}
		out = append(out, binding)
	}
	if !replaced {
		out = append(out, Binding{Name: name, Value: value})
	}
	return out
}

// Hook names a lifecycle function an author script may define
type Hook string

const (
	HookInit          Hook = "onDivPanelInit"
	HookDataUpdate    Hook = "onDivPanelDataUpdate"
	HookEnterEditMode Hook = "onDivPanelEnterEditMode"
	HookExitEditMode  Hook = "onDivPanelExitEditMode"
)

// Hooks lists every lifecycle hook
var Hooks = []Hook{HookInit, HookDataUpdate, HookEnterEditMode, HookExitEditMode}

// invoker is the statement appended to a script to call the hook
func (h Hook) invoker() string {
	if h == HookDataUpdate {
		return "if (data && typeof " + string(h) + " === 'function') { return " + string(h) + "(data, elem); }"
	}
	return "if (typeof " + string(h) + " === 'function') { return " + string(h) + "(elem); }"
}

// Props is the props object passed to a panel component
type Props struct {
	Data    interface{} `json:"data"`
	Options interface{} `json:"options"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
}
