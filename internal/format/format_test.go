// SPDX-License-Identifier: Apache-2.0

package format_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/internal/format"
)

var _ pflag.Value = (*format.Format)(nil)

func TestFormatSet(t *testing.T) {
	var f format.Format
	require.NoError(t, f.Set("YML"))
	assert.Equal(t, format.YAML, f)
	require.NoError(t, f.Set("toml"))
	assert.Equal(t, "toml", f.String())
	require.NoError(t, f.Set(""))
	assert.Equal(t, format.Format(""), f)
	assert.EqualError(t, f.Set("xml"), `invalid format "xml" (want json, yaml or toml)`)
	assert.Equal(t, "format", f.Type())
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want format.Format
	}{
		{"a.yaml", format.YAML},
		{"dir/b.YML", format.YAML},
		{"c.json", format.JSON},
		{"d.toml", format.TOML},
	}
	for _, tt := range tests {
		got, err := format.Detect(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := format.Detect("e.ini")
	assert.EqualError(t, err, `unsupported file format: ".ini"`)
}

func TestRoundTrip(t *testing.T) {
	doc := keyrecon.Map{
		"name":  keyrecon.String("disk"),
		"count": keyrecon.Int(3),
		"alarm": keyrecon.MapOf(keyrecon.Map{
			"trigger_on": keyrecon.List(keyrecon.String("A"), keyrecon.String("B")),
		}),
	}

	for _, f := range []format.Format{format.YAML, format.JSON, format.TOML} {
		t.Run(string(f), func(t *testing.T) {
			data, err := f.Encode(doc)
			require.NoError(t, err)
			got, err := f.Decode(data)
			require.NoError(t, err)
			assert.True(t, doc.Equal(got), "got %s", keyrecon.MapOf(got))
		})
	}
}

func TestDecode(t *testing.T) {
	m, err := format.YAML.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = format.JSON.Decode([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, keyrecon.ErrNotMapping)

	_, err = format.Format("xml").Decode([]byte(`<a/>`))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"b": true}}`), 0o600))

	m, f, err := format.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, format.JSON, f)
	assert.True(t, m.Lookup(keyrecon.KeyChain{"a", "b"}).IsFound())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- a\n"), 0o600))
	_, _, err = format.ReadFile(bad)
	assert.ErrorIs(t, err, keyrecon.ErrNotMapping)

	_, _, err = format.ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
