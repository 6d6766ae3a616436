package provisioning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

// Pattern matches definition files relative to the provisioning directory
const Pattern = "**/*.panel.{yaml,yml,toml,json}"

var ErrUnsupportedFormat = errors.New("unsupported definition format")

// Definition describes one provisioned panel
type Definition struct {
	ID          string     `json:"id" yaml:"id" toml:"id"`
	Title       string     `json:"title" yaml:"title" toml:"title"`
	Mode        types.Mode `json:"mode" yaml:"mode" toml:"mode"`
	Content     string     `json:"content" yaml:"content" toml:"content"`
	ContentFile string     `json:"content_file" yaml:"content_file" toml:"content_file"`

	// Source is the file the definition was read from
	Source string `json:"-" yaml:"-" toml:"-"`
}

// Request converts the definition into a create request
func (d *Definition) Request() types.CreatePanelRequest {
	return types.CreatePanelRequest{
		ID:      d.ID,
		Title:   d.Title,
		Mode:    d.Mode,
		Content: d.Content,
	}
}

// ReadDefinition reads and decodes the definition at path. A missing id
// falls back to the file name without its .panel.<ext> suffix.
func ReadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	def, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	def.Source = path

	if def.ID == "" {
		def.ID = baseID(path)
	}
	if def.ContentFile != "" {
		if def.Content != "" {
			return nil, fmt.Errorf("%s: content and content_file are mutually exclusive", filepath.Base(path))
		}
		contentPath := def.ContentFile
		if !filepath.IsAbs(contentPath) {
			contentPath = filepath.Join(filepath.Dir(path), contentPath)
		}
		content, err := os.ReadFile(contentPath)
		if err != nil {
			return nil, fmt.Errorf("%s: read content file: %w", filepath.Base(path), err)
		}
		def.Content = string(content)
	}
	return def, nil
}

// Decode parses data according to the file extension ext
func Decode(ext string, data []byte) (*Definition, error) {
	var def Definition
	var err error

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &def)
	case ".toml":
		err = toml.Unmarshal(data, &def)
	case ".json":
		err = sonic.Unmarshal(data, &def)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return &def, nil
}

func baseID(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSuffix(name, ".panel")
}
