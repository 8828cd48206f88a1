// Package secrets keeps credentials in the OS keychain so they never have to
// live in the config file.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"easyapply-engine/internal/config"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "easyapply"

const (
	LinkedIn = "linkedin"
	Gemini   = "gemini"
	Mail     = "mail"
)

// Kinds lists the secrets the set command accepts.
var Kinds = []string{LinkedIn, Gemini, Mail}

// Account returns the keychain account a secret is stored under.
func Account(kind string, cfg config.Config) (string, error) {
	switch kind {
	case LinkedIn:
		if cfg.LinkedIn.Email == "" {
			return "", errors.New("linkedin.email is empty")
		}
		return "linkedin:" + cfg.LinkedIn.Email, nil
	case Gemini:
		return "gemini", nil
	case Mail:
		if cfg.Mail.Username == "" || cfg.Mail.IMAPHost == "" {
			return "", errors.New("mail.username and mail.imap_host are required")
		}
		return fmt.Sprintf("mail:%s@%s", cfg.Mail.Username, cfg.Mail.IMAPHost), nil
	default:
		return "", fmt.Errorf("unknown secret %q (want one of %s)", kind, strings.Join(Kinds, ", "))
	}
}

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	return v, nil
}

func Set(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// Fill loads any empty credential in cfg from the keychain. Missing entries
// are left empty for validation to report.
func Fill(cfg config.Config) config.Config {
	fill := func(dst *string, kind string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		acct, err := Account(kind, cfg)
		if err != nil {
			return
		}
		if v, err := Get(acct); err == nil {
			*dst = v
		}
	}
	fill(&cfg.LinkedIn.Password, LinkedIn)
	fill(&cfg.Gemini.APIKey, Gemini)
	if cfg.Mail.Enabled {
		fill(&cfg.Mail.Password, Mail)
	}
	return cfg
}
