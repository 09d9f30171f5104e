package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseConfigPath tests ---

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "kommo", []string{"kommo"}, false},
		{"two segments", "kommo.subdomain", []string{"kommo", "subdomain"}, false},
		{"three segments", "kommo.bots.reply", []string{"kommo", "bots", "reply"}, false},
		{"empty", "", nil, true},
		{"empty segment", "kommo..subdomain", nil, true},
		{"leading dot", ".kommo", nil, true},
		{"trailing dot", "kommo.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked prototype", "prototype.x", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// --- GetValueAtPath tests ---

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"kommo": map[string]any{
			"subdomain": "wirasena",
			"bots": map[string]any{
				"reply": 66700,
			},
		},
		"simple": "value",
	}

	tests := []struct {
		name string
		path []string
		want any
		ok   bool
	}{
		{"nested value", []string{"kommo", "subdomain"}, "wirasena", true},
		{"deeply nested", []string{"kommo", "bots", "reply"}, 66700, true},
		{"top level", []string{"simple"}, "value", true},
		{"missing key", []string{"nonexistent"}, nil, false},
		{"missing nested", []string{"kommo", "nonexistent"}, nil, false},
		{"non-map intermediate", []string{"simple", "sub"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := GetValueAtPath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, val)
			}
		})
	}
}

// --- SetValueAtPath tests ---

func TestSetValueAtPath_Update(t *testing.T) {
	root := map[string]any{
		"bridge": map[string]any{
			"queueSize": 64,
		},
	}

	SetValueAtPath(root, []string{"bridge", "queueSize"}, 128)
	val, ok := GetValueAtPath(root, []string{"bridge", "queueSize"})
	assert.True(t, ok)
	assert.Equal(t, 128, val)
}

func TestSetValueAtPath_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"a", "b", "c"}, "deep")
	val, ok := GetValueAtPath(root, []string{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "deep", val)
}

func TestSetValueAtPath_OverwritesNonMap(t *testing.T) {
	root := map[string]any{
		"kommo": "string-not-map",
	}

	SetValueAtPath(root, []string{"kommo", "subdomain"}, "x")
	val, ok := GetValueAtPath(root, []string{"kommo", "subdomain"})
	assert.True(t, ok)
	assert.Equal(t, "x", val)
}

func TestSetValueAtPath_SingleKey(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"version"}, "1.0.0")
	assert.Equal(t, "1.0.0", root["version"])
}

// --- UnsetValueAtPath tests ---

func TestUnsetValueAtPath_PreserveSiblings(t *testing.T) {
	root := map[string]any{
		"kommo": map[string]any{
			"subdomain":   "wirasena",
			"accessToken": "tok",
		},
	}

	ok := UnsetValueAtPath(root, []string{"kommo", "accessToken"})
	assert.True(t, ok)

	_, found := GetValueAtPath(root, []string{"kommo", "accessToken"})
	assert.False(t, found)

	val, found := GetValueAtPath(root, []string{"kommo", "subdomain"})
	assert.True(t, found)
	assert.Equal(t, "wirasena", val)
}

func TestUnsetValueAtPath_NotFound(t *testing.T) {
	root := map[string]any{
		"kommo": map[string]any{"subdomain": "x"},
	}

	ok := UnsetValueAtPath(root, []string{"kommo", "nonexistent"})
	assert.False(t, ok)
}

func TestUnsetValueAtPath_MissingIntermediate(t *testing.T) {
	root := map[string]any{}
	ok := UnsetValueAtPath(root, []string{"a", "b", "c"})
	assert.False(t, ok)
}

func TestUnsetValueAtPath_NonMapIntermediate(t *testing.T) {
	root := map[string]any{
		"kommo": "string",
	}
	ok := UnsetValueAtPath(root, []string{"kommo", "subdomain"})
	assert.False(t, ok)
}

// --- ResolvePaths tests ---

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("KOMMOBRIDGE_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".kommobridge"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".kommobridge", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".kommobridge", "data"), paths.Data)
	assert.Equal(t, filepath.Join(home, ".kommobridge", "logs"), paths.Logs)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("KOMMOBRIDGE_HOME", "/tmp/testkb")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/testkb", paths.Base)
	assert.Equal(t, "/tmp/testkb/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/testkb/data", paths.Data)
	assert.Equal(t, "/tmp/testkb/logs", paths.Logs)
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()
	paths := Paths{
		Base: filepath.Join(tmpDir, "base"),
		Data: filepath.Join(tmpDir, "base", "data"),
		Logs: filepath.Join(tmpDir, "base", "logs"),
	}

	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent
	require.NoError(t, paths.EnsureDirs())
}

func TestStorePath(t *testing.T) {
	paths := Paths{Data: "/var/lib/kb/data"}

	cfg := Defaults()
	assert.Equal(t, "/var/lib/kb/data/kommobridge.db", paths.StorePath(&cfg))

	cfg.Store.Path = "/custom/location.db"
	assert.Equal(t, "/custom/location.db", paths.StorePath(&cfg))
}
