package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("EA_PHONE", "5551234")
	assert.Equal(t, "phone: 5551234", ExpandEnv("phone: ${EA_PHONE}"))
	assert.Equal(t, "pw: $ecret", ExpandEnv("pw: $ecret"))
	assert.Equal(t, "x: ", ExpandEnv("x: ${EA_SURELY_UNSET_VAR}"))
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("EA_EMAIL", "me@example.com")
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
linkedin:
  email: ${EA_EMAIL}
search:
  keywords: golang developer
  location: Berlin
apply:
  max_steps: 7
resume_context:
  phone: "5551234"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", cfg.LinkedIn.Email)
	assert.Equal(t, 7, cfg.Apply.MaxSteps)
	assert.Equal(t, 1, cfg.Apply.FillRetries)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "5551234", cfg.ResumeContext["phone"])
	assert.NoError(t, Validate(cfg))
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Apply.MaxSteps = 0
	cfg.Mail.Enabled = true
	cfg.Logging.Level = "loud"

	_, res := NormalizeAndValidate(cfg)
	assert.False(t, res.OK())
	assert.Contains(t, res.Errors, "search.keywords is required")
	assert.Contains(t, res.Errors, "apply.max_steps must be > 0")
	assert.Contains(t, res.Errors, "mail.imap_host is required when mail.enabled=true")
	assert.Contains(t, res.Errors, "logging.level must be one of debug, info, warn, error")

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestEnsureUserConfigCopiesOnce(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.yml")
	require.NoError(t, os.WriteFile(def, []byte("search:\n  keywords: go\n"), 0o644))

	dataDir := filepath.Join(dir, "data")
	p, err := EnsureUserConfig(dataDir, def)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), p)

	require.NoError(t, os.WriteFile(p, []byte("edited"), 0o644))
	p2, err := EnsureUserConfig(dataDir, def)
	require.NoError(t, err)
	b, _ := os.ReadFile(p2)
	assert.Equal(t, "edited", string(b))
}

func TestResolveJoinsRelativePaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/ea"
	cfg.ResumePath = "resume.yml"
	cfg.Ledger.Path = "/abs/ledger.json"
	cfg.Resolve()
	assert.Equal(t, "/var/ea/resume.yml", cfg.ResumePath)
	assert.Equal(t, "/abs/ledger.json", cfg.Ledger.Path)
	assert.Equal(t, "/var/ea/easyapply.db", cfg.History.Path)
}
