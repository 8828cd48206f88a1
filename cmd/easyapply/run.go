package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"easyapply-engine/internal/answer"
	"easyapply-engine/internal/apply"
	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/browser/roddriver"
	"easyapply-engine/internal/config"
	"easyapply-engine/internal/domain"
	"easyapply-engine/internal/form"
	"easyapply-engine/internal/ledger"
	"easyapply-engine/internal/linkedin"
	"easyapply-engine/internal/mailpin"
	"easyapply-engine/internal/modal"
	"easyapply-engine/internal/resume"
	"easyapply-engine/internal/scheduler"
	"easyapply-engine/internal/store"
	"easyapply-engine/internal/util"
)

var (
	runKeywords string
	runLocation string
	runMaxJobs  int
	runNoGen    bool
	runEvery    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search LinkedIn and apply to Easy Apply listings",
	Long: `Logs in, searches with the configured keywords and location, and walks
each Easy Apply listing through the application dialog.

Flags override the search section of the config for one run.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runKeywords, "keywords", "", "override search.keywords")
	f.StringVar(&runLocation, "location", "", "override search.location")
	f.IntVar(&runMaxJobs, "max-jobs", 0, "override search.max_jobs")
	f.DurationVar(&runEvery, "every", 0, "repeat the run on this interval until interrupted (e.g. 6h)")
	f.BoolVar(&runNoGen, "no-generator", false, "answer only from the resume; unknown fields get the fallback text")
}

func runApply(cmd *cobra.Command, _ []string) error {
	if runKeywords != "" {
		cfg.Search.Keywords = runKeywords
	}
	if runLocation != "" {
		cfg.Search.Location = runLocation
	}
	if runMaxJobs > 0 {
		cfg.Search.MaxJobs = runMaxJobs
	}
	c, err := validated()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, err := loadResume(c)
	if err != nil {
		return err
	}

	var gen answer.Generator
	if !runNoGen {
		if c.Gemini.APIKey == "" {
			logger.Warn("no gemini api key; fields missing from the resume get the fallback text")
		} else {
			g, err := answer.NewGemini(ctx, answer.GeminiConfig{
				APIKey:          c.Gemini.APIKey,
				Model:           c.Gemini.Model,
				Temperature:     c.Gemini.Temperature,
				MaxOutputTokens: c.Gemini.MaxOutputTokens,
				Timeout:         c.GeminiTimeout(),
			}, logger)
			if err != nil {
				return err
			}
			gen = g
		}
	}

	drv, err := roddriver.Launch(ctx, roddriver.Config{
		Headless:    c.Browser.Headless,
		Bin:         c.Browser.Bin,
		UserDataDir: c.Browser.UserDataDir,
		ControlURL:  c.Browser.ControlURL,
		NavTimeout:  c.NavTimeout(),
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := drv.Quit(); err != nil {
			logger.Warn("browser quit", zap.Error(err))
		}
	}()

	var pins linkedin.PINSource
	if c.Mail.Enabled {
		pins = mailpin.New(mailpin.Config{
			Host:     c.Mail.IMAPHost,
			Port:     c.Mail.IMAPPort,
			Username: c.Mail.Username,
			Password: c.Mail.Password,
			Mailbox:  c.Mail.Mailbox,
			Wait:     c.MailWait(),
		}, logger)
	}
	site := linkedin.New(drv, linkedin.Config{
		BaseURL:     c.LinkedIn.BaseURL,
		Email:       c.LinkedIn.Email,
		Password:    c.LinkedIn.Password,
		CardRetries: c.Search.CardRetries,
		Settle:      c.StepDelay(),
		LoginWait:   c.NavTimeout(),
		FieldWait:   c.AffordanceTimeout(),
	}, pins, logger)

	classifier := form.NewClassifier(drv, logger)
	engine := modal.New(drv, classifier, form.NewResolver(rc, gen, logger), form.NewFiller(drv, logger),
		modal.NewArtifacts(c.Artifacts.Dir, logger),
		modal.Options{
			MaxSteps:          c.Apply.MaxSteps,
			FillRetries:       c.Apply.FillRetries,
			ModalTimeout:      c.ModalTimeout(),
			AffordanceTimeout: c.AffordanceTimeout(),
			StepDelay:         c.StepDelay(),
		}, logger)

	var db *store.DB
	if c.History.Enabled {
		if db, err = store.Open(c.History.Path); err != nil {
			return err
		}
		defer db.Close()
	}

	led := ledger.Open(c.Ledger.Path, logger)
	pacer := util.NewHostLimiter(c.Apply.JobsPerMinute/60, 1)
	q := linkedin.Query{Keywords: c.Search.Keywords, Location: c.Search.Location, GeoID: c.Search.GeoID}

	pass := func(ctx context.Context) error {
		var history apply.History
		if db != nil {
			rec := store.NewRecorder(db)
			logger.Info("recording history", zap.String("run_id", rec.RunID))
			history = rec
		}
		o := apply.New(drv, site, engine, led, history, pacer, apply.Options{MaxJobs: c.Search.MaxJobs}, logger)
		outcomes, err := o.Run(ctx, q)
		printOutcomes(cmd, outcomes)
		if errors.Is(err, browser.ErrSessionLost) {
			return scheduler.Permanent(err)
		}
		return err
	}

	if runEvery > 0 {
		err = scheduler.Every(ctx, runEvery, "apply", pass, logger)
	} else {
		err = pass(ctx)
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("run interrupted")
		return nil
	}
	return err
}

func loadResume(c config.Config) (resume.Context, error) {
	switch {
	case c.ResumePath != "":
		rc, err := resume.Load(c.ResumePath)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case len(c.ResumeContext) > 0:
		return resume.FromMap(c.ResumeContext), nil
	default:
		return resume.Context{}, nil
	}
}

func printOutcomes(cmd *cobra.Command, outcomes []domain.ApplyOutcome) {
	w := table(cmd.OutOrStdout())
	fmt.Fprintln(w, "JOB\tSTATUS\tTITLE\tCOMPANY\tDETAIL")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.JobID, o.Status, o.Title, o.Company, o.Detail)
	}
	_ = w.Flush()
}
