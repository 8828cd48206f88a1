package config

import (
	"errors"
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a trimmed copy of cfg and the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.LinkedIn.Email = strings.TrimSpace(out.LinkedIn.Email)
	out.LinkedIn.BaseURL = strings.TrimRight(strings.TrimSpace(out.LinkedIn.BaseURL), "/")
	out.Search.Keywords = strings.TrimSpace(out.Search.Keywords)
	out.Search.Location = strings.TrimSpace(out.Search.Location)
	out.Logging.Level = strings.ToLower(strings.TrimSpace(out.Logging.Level))

	if out.LinkedIn.BaseURL == "" {
		res.addErr("linkedin.base_url is required")
	}
	if out.LinkedIn.Email == "" && out.Browser.UserDataDir == "" && out.Browser.ControlURL == "" {
		res.addErr("linkedin.email is required unless a logged-in browser profile is used")
	}
	if out.Search.Keywords == "" {
		res.addErr("search.keywords is required")
	}
	if out.Search.MaxJobs <= 0 {
		res.addErr("search.max_jobs must be > 0")
	}
	if out.Search.CardRetries <= 0 {
		res.addErr("search.card_retries must be > 0")
	}
	if out.Search.Location == "" {
		res.addWarn("search.location is empty; LinkedIn will search worldwide.")
	}

	// step engine sanity
	if out.Apply.MaxSteps <= 0 {
		res.addErr("apply.max_steps must be > 0")
	} else if out.Apply.MaxSteps > 20 {
		res.addWarn("apply.max_steps is very high (%d); a stuck modal will take long to abort.", out.Apply.MaxSteps)
	}
	if out.Apply.ModalTimeoutSeconds <= 0 {
		res.addErr("apply.modal_timeout_seconds must be > 0")
	}
	if out.Apply.AffordanceTimeoutSeconds <= 0 {
		res.addErr("apply.affordance_timeout_seconds must be > 0")
	}
	if out.Apply.FillRetries < 0 {
		res.addErr("apply.fill_retries must be >= 0")
	}
	if out.Apply.StepDelayMillis < 0 {
		res.addErr("apply.step_delay_millis must be >= 0")
	}
	if out.Apply.JobsPerMinute < 0 {
		res.addErr("apply.jobs_per_minute must be >= 0")
	} else if out.Apply.JobsPerMinute == 0 || out.Apply.JobsPerMinute > 20 {
		res.addWarn("apply.jobs_per_minute is %v; fast pacing is more likely to trip anti-automation checks.", out.Apply.JobsPerMinute)
	}

	if strings.TrimSpace(out.Gemini.Model) == "" {
		res.addErr("gemini.model is required")
	}
	if out.Gemini.Temperature < 0 || out.Gemini.Temperature > 2 {
		res.addErr("gemini.temperature must be within 0..2")
	}
	if out.Gemini.MaxOutputTokens <= 0 {
		res.addErr("gemini.max_output_tokens must be > 0")
	}
	if out.Gemini.TimeoutSeconds <= 0 {
		res.addErr("gemini.timeout_seconds must be > 0")
	}

	if strings.TrimSpace(out.Ledger.Path) == "" {
		res.addErr("ledger.path is required")
	}
	if out.History.Enabled && strings.TrimSpace(out.History.Path) == "" {
		res.addErr("history.path is required when history.enabled=true")
	}

	// mail required fields if enabled (password not required here; it's in keychain)
	if out.Mail.Enabled {
		if strings.TrimSpace(out.Mail.IMAPHost) == "" {
			res.addErr("mail.imap_host is required when mail.enabled=true")
		}
		if out.Mail.IMAPPort == 0 {
			res.addErr("mail.imap_port is required when mail.enabled=true")
		}
		if strings.TrimSpace(out.Mail.Username) == "" {
			res.addErr("mail.username is required when mail.enabled=true")
		}
		if strings.TrimSpace(out.Mail.Mailbox) == "" {
			res.addErr("mail.mailbox is required when mail.enabled=true")
		}
		if out.Mail.WaitSeconds <= 0 {
			res.addErr("mail.wait_seconds must be > 0 when mail.enabled=true")
		}
	}

	switch out.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		res.addErr("logging.level must be one of debug, info, warn, error")
	}

	if out.ResumePath == "" && len(out.ResumeContext) == 0 {
		res.addWarn("no resume_path or resume_context; every answer will come from the generator.")
	}

	return out, res
}

// Validate is NormalizeAndValidate folded into a single error.
func Validate(cfg Config) error {
	_, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		return errors.New("config validation failed:\n- " + strings.Join(res.Errors, "\n- "))
	}
	return nil
}
