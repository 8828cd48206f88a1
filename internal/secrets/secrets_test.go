package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"easyapply-engine/internal/config"
)

func TestAccount(t *testing.T) {
	cfg := config.Default()
	cfg.LinkedIn.Email = "jane@example.com"
	cfg.Mail.Username = "jane"
	cfg.Mail.IMAPHost = "imap.example.com"

	a, err := Account(LinkedIn, cfg)
	require.NoError(t, err)
	assert.Equal(t, "linkedin:jane@example.com", a)

	a, err = Account(Mail, cfg)
	require.NoError(t, err)
	assert.Equal(t, "mail:jane@imap.example.com", a)

	_, err = Account("aws", cfg)
	assert.Error(t, err)

	cfg.LinkedIn.Email = ""
	_, err = Account(LinkedIn, cfg)
	assert.Error(t, err)
}

func TestFillFromKeyring(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, Set("linkedin:jane@example.com", "s3cret"))
	require.NoError(t, Set("gemini", "api-key"))

	cfg := config.Default()
	cfg.LinkedIn.Email = "jane@example.com"
	cfg.Gemini.APIKey = "from-env"

	got := Fill(cfg)
	assert.Equal(t, "s3cret", got.LinkedIn.Password)
	assert.Equal(t, "from-env", got.Gemini.APIKey)
	assert.Empty(t, got.Mail.Password)

	require.NoError(t, Delete("gemini"))
	_, err := Get("gemini")
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	assert.Error(t, Set("gemini", " "))
}
