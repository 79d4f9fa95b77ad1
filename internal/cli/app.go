package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/gatekeeper/internal/config"
	"github.com/Dicklesworthstone/gatekeeper/internal/core"
	"github.com/Dicklesworthstone/gatekeeper/internal/db"
	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/output"
	"github.com/Dicklesworthstone/gatekeeper/internal/policy"
	"github.com/Dicklesworthstone/gatekeeper/internal/utils"
)

// app holds everything one CLI invocation needs, built from the effective config.
type app struct {
	cfg      config.Config
	project  string
	logger   *log.Logger
	out      *output.Writer
	registry *core.Registry
	risk     *core.RiskTable
	ledger   *ledger.Ledger
	runner   *core.ExecRunner
	gk       *core.Gatekeeper

	closers []io.Closer
}

// loadConfig loads the effective configuration for cmd's project.
func loadConfig() (config.Config, string, error) {
	project, err := projectPath()
	if err != nil {
		return config.Config{}, "", err
	}
	overrides := map[string]any{}
	if flagLedger != "" {
		overrides["ledger.path"] = flagLedger
	}
	if flagVerbose {
		overrides["logging.level"] = "debug"
	}
	cfg, err := config.Load(config.LoadOptions{
		ProjectDir:    project,
		ConfigPath:    flagConfig,
		FlagOverrides: overrides,
	})
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, project, nil
}

// loadApp builds the policy, ledger, runner and gatekeeper for cmd.
// Callers must Close the returned app.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, project, err := loadConfig()
	if err != nil {
		return nil, err
	}
	format, err := resolveFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		project: project,
		out:     newWriter(cmd, format, cfg.Output.Color),
	}
	if err := a.init(cmd); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(cmd *cobra.Command) error {
	logOpts := utils.DefaultLoggerOptions()
	logOpts.Level = a.cfg.Logging.Level
	logOpts.Output = cmd.ErrOrStderr()
	if a.cfg.Logging.File != "" {
		logger, closer, err := utils.InitFileLogger(a.resolve(a.cfg.Logging.File), logOpts)
		if err != nil {
			return err
		}
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = utils.InitLogger(logOpts)
	}

	allow, risk, err := policy.LoadOrDefault(a.resolve(a.cfg.Policy.AllowListPath), a.resolve(a.cfg.Policy.RiskProfilesPath))
	if err != nil {
		return err
	}
	if a.registry, err = core.NewRegistry(allow); err != nil {
		return fmt.Errorf("allow-list: %w", err)
	}
	if a.risk, err = core.NewRiskTable(risk); err != nil {
		return fmt.Errorf("risk profiles: %w", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	a.ledger, err = ledger.Open(cmd.Context(), store, ledger.WithLogger(a.logger))
	if err != nil {
		return err
	}
	scope, err := ledger.ParseKeyScope(a.cfg.Ledger.KeyScope)
	if err != nil {
		return err
	}

	workDir := a.resolve(a.cfg.Execution.WorkDir)
	if workDir == "" {
		workDir = a.project
	}
	a.runner = core.NewExecRunner(workDir, time.Duration(a.cfg.Execution.TimeoutSecs)*time.Second, a.logger)
	a.runner.LogDir = a.resolve(a.cfg.Execution.LogDir)

	a.gk, err = core.New(core.Config{
		Validator: core.NewValidator(a.registry),
		RiskTable: a.risk,
		Ledger:    a.ledger,
		Runner:    a.runner,
		KeyScope:  scope,
		Logger:    a.logger,
	})
	return err
}

func (a *app) openStore() (ledger.Store, error) {
	switch a.cfg.Ledger.Backend {
	case "sqlite":
		var (
			database *db.DB
			err      error
		)
		if a.cfg.Ledger.Path == "" {
			database, err = db.OpenProjectDB(a.project)
		} else {
			database, err = db.OpenAndMigrate(a.resolve(a.cfg.Ledger.Path))
		}
		if err != nil {
			return nil, fmt.Errorf("opening ledger database: %w", err)
		}
		a.closers = append(a.closers, database)
		// A database written by a newer build is refused rather than misread.
		if err := database.ValidateSchema(); err != nil {
			return nil, fmt.Errorf("ledger database %s: %w", database.Path(), err)
		}
		return db.NewApprovalStore(database), nil
	default:
		return ledger.NewFileStore(a.resolve(a.cfg.Ledger.LedgerPath())), nil
	}
}

// resolve makes p absolute relative to the project directory. Empty stays empty.
func (a *app) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.project, p)
}

// Close releases the ledger database and log file, if any.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
