package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestImage_AddAndList(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)

	a := filepath.Join(env.dir, "before.png")
	b := filepath.Join(env.dir, "after.png")
	require.NoError(t, os.WriteFile(a, pngBytes, 0o644))
	require.NoError(t, os.WriteFile(b, pngBytes, 0o644))

	var added map[string][]int64
	env.run(t, "image", "add", "1", a, b).ok(t, &added)
	assert.Len(t, added["added"], 2)

	var list []ImageSummary
	env.run(t, "image", "list", "1").ok(t, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "before.png", list[0].Name)
	assert.Equal(t, "image/png", list[0].Type)
	assert.Equal(t, len(pngBytes), list[0].Bytes)
}

func TestImage_AddMissingFile(t *testing.T) {
	env := newCLIEnv(t)

	e := env.run(t, "image", "add", "1", filepath.Join(env.dir, "nope.png")).failed(t, ExitCommandError)
	assert.Contains(t, e.Message, "failed to read")
}
