package program_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/program"
	"github.com/shadowCow/mathdoc/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAbsolutePath_NotFound(t *testing.T) {
	p := program.New(t.TempDir())
	_, code := p.OpenAbsolutePath(filepath.Join(t.TempDir(), "missing.math"))
	assert.Equal(t, codeerr.CodeFileNotFound, code)
}

func TestOpenAbsolutePath_AlreadyOpenReturnsSameModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.math")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	p := program.New(dir)
	m1, code := p.OpenAbsolutePath(path)
	require.Equal(t, codeerr.Code(0), code)
	require.NotNil(t, m1)

	m2, code := p.OpenAbsolutePath(path)
	require.Equal(t, codeerr.Code(0), code)
	assert.Same(t, m1, m2)
}

func TestOpenAbsolutePath_Corrupted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.math")
	content := "unmatched " + string(serial.Open) + " open"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := program.New(dir)
	_, code := p.OpenAbsolutePath(path)
	assert.Equal(t, codeerr.CodeFileCorrupted, code)
}

func TestOpenRelativePath_AutoExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.math"), []byte("y = 2\n"), 0o644))

	p := program.New(dir)
	m, code := p.OpenRelativePath("lib")
	require.Equal(t, codeerr.Code(0), code)
	require.NotNil(t, m)
}

func TestIsOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.math")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	p := program.New(dir)
	assert.False(t, p.IsOpen(path))
	_, code := p.OpenAbsolutePath(path)
	require.Equal(t, codeerr.Code(0), code)
	assert.True(t, p.IsOpen(path))
}

func TestResetImports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.math")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	p := program.New(dir)
	_, _ = p.OpenAbsolutePath(path)
	require.True(t, p.IsOpen(path))

	p.ResetImports()
	assert.False(t, p.IsOpen(path))
}

func TestAcquireRun_SerializesInterpreterSlot(t *testing.T) {
	p := program.New(t.TempDir())
	release := p.AcquireRun()
	done := make(chan struct{})
	go func() {
		release2 := p.AcquireRun()
		release2()
		close(done)
	}()
	release()
	<-done
}
