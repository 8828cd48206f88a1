package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string `yaml:"data_dir"`

	LinkedIn struct {
		BaseURL  string `yaml:"base_url"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"` // empty = OS keychain
	} `yaml:"linkedin"`

	Search struct {
		Keywords    string `yaml:"keywords"`
		Location    string `yaml:"location"`
		GeoID       string `yaml:"geo_id"`
		MaxJobs     int    `yaml:"max_jobs"`
		CardRetries int    `yaml:"card_retries"`
	} `yaml:"search"`

	Browser struct {
		Headless          bool   `yaml:"headless"`
		Bin               string `yaml:"bin"`
		UserDataDir       string `yaml:"user_data_dir"`
		ControlURL        string `yaml:"control_url"`
		NavTimeoutSeconds int    `yaml:"nav_timeout_seconds"`
	} `yaml:"browser"`

	Apply struct {
		MaxSteps                 int     `yaml:"max_steps"`
		ModalTimeoutSeconds      int     `yaml:"modal_timeout_seconds"`
		AffordanceTimeoutSeconds int     `yaml:"affordance_timeout_seconds"`
		FillRetries              int     `yaml:"fill_retries"`
		JobsPerMinute            float64 `yaml:"jobs_per_minute"`
		StepDelayMillis          int     `yaml:"step_delay_millis"`
	} `yaml:"apply"`

	Gemini struct {
		APIKey          string  `yaml:"api_key"` // empty = OS keychain
		Model           string  `yaml:"model"`
		Temperature     float32 `yaml:"temperature"`
		MaxOutputTokens int32   `yaml:"max_output_tokens"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
	} `yaml:"gemini"`

	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`

	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	Mail struct {
		Enabled     bool   `yaml:"enabled"`
		IMAPHost    string `yaml:"imap_host"`
		IMAPPort    int    `yaml:"imap_port"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"` // empty = OS keychain
		Mailbox     string `yaml:"mailbox"`
		WaitSeconds int    `yaml:"wait_seconds"`
	} `yaml:"mail"`

	Logging struct {
		Level string `yaml:"level"`
		Dev   bool   `yaml:"dev"`
	} `yaml:"logging"`

	ResumePath    string         `yaml:"resume_path"`
	ResumeContext map[string]any `yaml:"resume_context"`
}

func Default() Config {
	var cfg Config
	cfg.DataDir = "."
	cfg.LinkedIn.BaseURL = "https://www.linkedin.com"
	cfg.Search.MaxJobs = 10
	cfg.Search.CardRetries = 3
	cfg.Browser.NavTimeoutSeconds = 30
	cfg.Apply.MaxSteps = 5
	cfg.Apply.ModalTimeoutSeconds = 10
	cfg.Apply.AffordanceTimeoutSeconds = 5
	cfg.Apply.FillRetries = 1
	cfg.Apply.JobsPerMinute = 4
	cfg.Apply.StepDelayMillis = 1500
	cfg.Gemini.Model = "gemini-1.5-flash"
	cfg.Gemini.Temperature = 0.1
	cfg.Gemini.MaxOutputTokens = 1000
	cfg.Gemini.TimeoutSeconds = 30
	cfg.Ledger.Path = "applied_jobs.json"
	cfg.History.Enabled = true
	cfg.History.Path = "easyapply.db"
	cfg.Artifacts.Dir = "."
	cfg.Mail.IMAPPort = 993
	cfg.Mail.Mailbox = "INBOX"
	cfg.Mail.WaitSeconds = 60
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads a YAML config on top of Default. ${VAR} tokens are replaced
// from the environment before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal([]byte(ExpandEnv(string(b))), &cfg)
	return cfg, err
}

var envToken = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} tokens only; bare $VAR is left alone so
// passwords and prompts containing dollar signs survive. Unset variables
// expand to "".
func ExpandEnv(s string) string {
	return envToken.ReplaceAllStringFunc(s, func(tok string) string {
		return os.Getenv(envToken.FindStringSubmatch(tok)[1])
	})
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) NavTimeout() time.Duration        { return seconds(c.Browser.NavTimeoutSeconds) }
func (c Config) ModalTimeout() time.Duration      { return seconds(c.Apply.ModalTimeoutSeconds) }
func (c Config) AffordanceTimeout() time.Duration { return seconds(c.Apply.AffordanceTimeoutSeconds) }
func (c Config) GeminiTimeout() time.Duration     { return seconds(c.Gemini.TimeoutSeconds) }
func (c Config) MailWait() time.Duration          { return seconds(c.Mail.WaitSeconds) }
func (c Config) StepDelay() time.Duration {
	return time.Duration(c.Apply.StepDelayMillis) * time.Millisecond
}
