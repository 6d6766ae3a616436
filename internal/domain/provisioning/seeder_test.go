package provisioning

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/providers/http/client"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newManager(t *testing.T) *panel.Manager {
	t.Helper()
	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 1)
	require.NoError(t, err)
	m := panel.NewManager(panel.DefaultConfig(), pool, client.NewClient(client.DefaultConfig()), nil, nil)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		_ = pool.Close()
	})
	return m
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		want    Definition
		wantErr bool
	}{
		{
			name: "yaml",
			ext:  ".yaml",
			data: "id: sales\ntitle: Sales\nmode: html\ncontent: |\n  <p>hi</p>\n",
			want: Definition{ID: "sales", Title: "Sales", Mode: types.ModeHTML, Content: "<p>hi</p>\n"},
		},
		{
			name: "toml",
			ext:  ".toml",
			data: "id = \"cpu\"\nmode = \"component\"\ncontent = \"export const A = () => <b/>\"\n",
			want: Definition{ID: "cpu", Mode: types.ModeComponent, Content: "export const A = () => <b/>"},
		},
		{
			name: "json",
			ext:  ".JSON",
			data: `{"id":"mem","title":"Memory","content_file":"mem.html"}`,
			want: Definition{ID: "mem", Title: "Memory", ContentFile: "mem.html"},
		},
		{name: "broken yaml", ext: ".yml", data: "id: [", wantErr: true},
		{name: "unknown extension", ext: ".ini", data: "id=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Decode(tt.ext, []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *def)
		})
	}
}

func TestReadDefinition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chart.html", "<div>chart</div>")

	t.Run("content file and derived id", func(t *testing.T) {
		path := writeFile(t, dir, "chart.panel.yaml", "title: Chart\ncontent_file: chart.html\n")
		def, err := ReadDefinition(path)
		require.NoError(t, err)
		assert.Equal(t, "chart", def.ID)
		assert.Equal(t, "<div>chart</div>", def.Content)
		assert.Equal(t, path, def.Source)
	})

	t.Run("content and content file", func(t *testing.T) {
		path := writeFile(t, dir, "both.panel.json", `{"content":"<p/>","content_file":"chart.html"}`)
		_, err := ReadDefinition(path)
		assert.Error(t, err)
	})

	t.Run("missing content file", func(t *testing.T) {
		path := writeFile(t, dir, "lost.panel.toml", "content_file = \"nope.html\"\n")
		_, err := ReadDefinition(path)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.panel.yaml", "")
	writeFile(t, dir, "nested/deep/b.panel.toml", "")
	writeFile(t, dir, "nested/c.panel.json", "")
	writeFile(t, dir, "nested/d.panel.yml", "")
	writeFile(t, dir, "notes.yaml", "")
	writeFile(t, dir, "panel.json", "")

	s := NewSeeder(nil, dir, nil)
	paths, err := s.Discover(context.Background())
	require.NoError(t, err)

	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{
		"a.panel.yaml",
		"nested/c.panel.json",
		"nested/d.panel.yml",
		"nested/deep/b.panel.toml",
	}, rel)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.panel.yaml", "title: Hello\ncontent: <p>hello</p>\n")
	writeFile(t, dir, "widget.panel.toml", "id = \"widget\"\nmode = \"component\"\ncontent = \"export const W = () => <b>w</b>\"\n")
	writeFile(t, dir, "broken.panel.toml", "mode = \"component\"\ncontent = \"const x = 1\"\n")
	writeFile(t, dir, "invalid.panel.json", "{")
	writeFile(t, dir, "bad-mode.panel.yaml", "mode: svg\n")

	m := newManager(t)
	ctx := context.Background()

	res, err := NewSeeder(m, dir, nil).Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Loaded: 3, Failed: 2}, res)

	hello, err := m.Lookup("hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", hello.Info().Title)
	out, err := hello.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<p>hello</p>")

	widget, err := m.Lookup("widget")
	require.NoError(t, err)
	assert.Equal(t, "W", widget.Options().ExportedFn)

	broken, err := m.Lookup("broken")
	require.NoError(t, err)
	assert.True(t, broken.Info().HasError)

	res, err = NewSeeder(m, dir, nil).Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 3, Failed: 2}, res, "open panels are not provisioned again")
}

func TestSeedMissingDirectory(t *testing.T) {
	res, err := NewSeeder(nil, filepath.Join(t.TempDir(), "absent"), nil).Seed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)

	res, err = NewSeeder(nil, "", nil).Seed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}
