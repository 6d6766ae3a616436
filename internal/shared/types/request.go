package types

// CreatePanelRequest creates a new panel
type CreatePanelRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Mode    Mode   `json:"mode"`
	Content string `json:"content"`
}

// ContentRequest carries editor content for save/run/clear
type ContentRequest struct {
	Content string `json:"content"`
	Mode    Mode   `json:"mode,omitempty"`
}

// TransformRequest asks for a standalone transform
type TransformRequest struct {
	Source string `json:"source" binding:"required"`
}

// TransformResponse is the transform output
type TransformResponse struct {
	TransformedCode    string `json:"transformed_code"`
	ExportedSymbolName string `json:"exported_symbol_name"`
}

// WSMessage represents a WebSocket message in either direction
type WSMessage struct {
	Type     string     `json:"type"`
	Content  string     `json:"content,omitempty"`
	Mode     Mode       `json:"mode,omitempty"`
	Data     *PanelData `json:"data,omitempty"`
	EditMode *bool      `json:"edit_mode,omitempty"`
	HTML     string     `json:"html,omitempty"`
	Mount    MountKind  `json:"mount,omitempty"`
	Message  string     `json:"message,omitempty"`
}
