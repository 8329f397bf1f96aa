package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvServiceLayersFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCOUT_TEST_A=base\nSCOUT_TEST_B=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("SCOUT_TEST_B=override\n"), 0o600))

	t.Setenv(KeyAppEnv, "test")
	t.Setenv("SCOUT_TEST_A", "")
	t.Setenv("SCOUT_TEST_B", "")
	os.Unsetenv("SCOUT_TEST_A")
	os.Unsetenv("SCOUT_TEST_B")

	svc := NewEnvService(dir)

	assert.Equal(t, "test", svc.AppEnv())
	assert.Len(t, svc.Loaded(), 2)
	assert.Equal(t, "base", svc.Get("SCOUT_TEST_A"))
	assert.Equal(t, "override", svc.Get("SCOUT_TEST_B"))
}

func TestTypedGetters(t *testing.T) {
	svc := &EnvService{}

	t.Setenv("SCOUT_BOOL", "true")
	t.Setenv("SCOUT_INT", "42")
	t.Setenv("SCOUT_BAD_INT", "forty")
	t.Setenv("SCOUT_DUR", "90s")

	assert.True(t, svc.GetBool("SCOUT_BOOL", false))
	assert.True(t, svc.GetBool("SCOUT_MISSING", true))
	assert.Equal(t, 42, svc.GetInt("SCOUT_INT", 0))
	assert.Equal(t, 7, svc.GetInt("SCOUT_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, svc.GetDuration("SCOUT_DUR", time.Second))
	assert.Equal(t, "fallback", svc.GetWithDefault("SCOUT_MISSING", "fallback"))
	assert.Panics(t, func() { svc.MustGet("SCOUT_MISSING") })
}
