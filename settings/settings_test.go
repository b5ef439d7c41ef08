package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack_ScopedOverrideDoesNotLeak(t *testing.T) {
	s := settings.NewStack(settings.Default())
	assert.Equal(t, codeerr.Warn, s.Level(settings.Shadowing))

	s.PushScope()
	s.Set(settings.Shadowing, codeerr.NoWarning)
	assert.Equal(t, codeerr.NoWarning, s.Level(settings.Shadowing))
	s.PopScope()

	assert.Equal(t, codeerr.Warn, s.Level(settings.Shadowing))
}

func TestStack_InnerScopeInheritsOuterOverride(t *testing.T) {
	s := settings.NewStack(settings.Default())
	s.Set(settings.UnusedVar, codeerr.ErrorLevel)

	s.PushScope()
	assert.Equal(t, codeerr.ErrorLevel, s.Level(settings.UnusedVar))
	s.PopScope()
}

func TestLookup(t *testing.T) {
	id, ok := settings.Lookup("shadowing")
	require.True(t, ok)
	assert.Equal(t, settings.Shadowing, id)

	_, ok = settings.Lookup("not-a-setting")
	assert.False(t, ok)
}

func TestLoadSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	d := settings.Default()
	d[settings.Shadowing] = codeerr.ErrorLevel

	require.NoError(t, settings.Save(path, d))
	loaded, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, codeerr.ErrorLevel, loaded[settings.Shadowing])
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	loaded, err := settings.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), loaded)
}

func TestLoad_IgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus-setting: error\n"), 0o644))
	loaded, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), loaded)
}
