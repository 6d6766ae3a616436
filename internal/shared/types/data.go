package types

// PanelData is the data payload handed to data hooks and components
type PanelData struct {
	Series  []DataFrame            `json:"series"`
	State   string                 `json:"state,omitempty"`
	Request map[string]interface{} `json:"request,omitempty"`
}

// DataFrame is a named set of columns
type DataFrame struct {
	Name   string  `json:"name,omitempty"`
	RefID  string  `json:"refId,omitempty"`
	Fields []Field `json:"fields"`
}

// Field is one column of a frame
type Field struct {
	Name   string            `json:"name"`
	Type   string            `json:"type,omitempty"`
	Values []interface{}     `json:"values"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Len returns the number of rows of the longest field
func (f DataFrame) Len() int {
	n := 0
	for _, field := range f.Fields {
		if len(field.Values) > n {
			n = len(field.Values)
		}
	}
	return n
}
