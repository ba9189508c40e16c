package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sinmod/sinconfig/internal/config/loader"
	"github.com/sinmod/sinconfig/internal/config/manifest"
	"github.com/sinmod/sinconfig/internal/config/persist"
	"github.com/sinmod/sinconfig/internal/config/rule"
	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/logging"
	"github.com/sinmod/sinconfig/internal/session"
)

type rootFlags struct {
	config   string
	schema   string
	document string
	debug    bool
	logLevel string
}

// app carries state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  rootFlags

	opts     loader.Options
	logger   *logging.Logger
	rules    *rule.Engine
	document string
	session  *session.Session
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "sinconfig",
		Short: "Inspect and edit module settings",
		Long: titleStyle.Render("sinconfig") + subtitleStyle.Render(" - inspect and edit module settings") + `

Fields are declared in a YAML manifest; values live in a JSON settings
document grouped by category. Options are read from sinconfig.toml and
SINCONFIG_* environment variables, and flags override both.

` + subtitleStyle.Render("Examples:") + `
  sinconfig show                 Print every visible field and its value
  sinconfig set volume 75        Change a value and save the document
  sinconfig watch                Follow changes made by other programs`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.config, "config", "c", "", "options file (default "+loader.DefaultFile+")")
	pf.StringVar(&a.flags.schema, "schema", "", "schema manifest")
	pf.StringVar(&a.flags.document, "document", "", "settings document")
	pf.BoolVar(&a.flags.debug, "debug", false, "strict schema checks and debug logging")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newShowCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newUnsetCmd(a),
		newExportCmd(a),
		newPressCmd(a),
		newValidateCmd(a),
		newWatchCmd(a),
	)
	return root
}

// loadOptions layers flags over the options file and environment, then
// builds the logger.
func (a *app) loadOptions(cmd *cobra.Command) error {
	opts, err := loader.New().Load(a.flags.config)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		opts.SchemaPath = a.flags.schema
	}
	if flags.Changed("document") {
		opts.DocumentPath = a.flags.document
		opts.DocumentExplicit = true
	}
	if flags.Changed("debug") {
		opts.Debug = a.flags.debug
	}
	if flags.Changed("log-level") {
		opts.LogLevel = a.flags.logLevel
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	cfg := logging.DefaultConfig()
	cfg.Output = a.stderr
	cfg.Prefix = opts.ModuleName
	cfg.JSON = opts.LogFormat == "json"
	cfg.Level = logging.ParseLevel(opts.LogLevel)
	if opts.Debug {
		cfg.Level = logging.LevelDebug
	}

	a.opts = opts
	a.logger = logging.New(cfg)
	return nil
}

// buildSchema loads the manifest and registers its fields. strict forces
// strict checks regardless of the debug option.
func (a *app) buildSchema(strict bool) (*manifest.Manifest, *schema.Schema, error) {
	m, err := manifest.LoadFile(a.opts.SchemaPath)
	if err != nil {
		return nil, nil, err
	}

	a.rules = rule.NewEngine()
	sch, err := m.Build(manifest.BuildOptions{
		Strict:  strict || a.opts.Debug,
		Rules:   a.rules,
		Actions: a.actions(),
		Logger:  a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, sch, nil
}

// documentPath prefers an explicitly configured document and falls back to
// the manifest's, resolved against the manifest's directory.
func (a *app) documentPath(m *manifest.Manifest) string {
	if a.opts.DocumentExplicit || m.Document == "" {
		return a.opts.DocumentPath
	}
	if filepath.IsAbs(m.Document) {
		return m.Document
	}
	return filepath.Join(filepath.Dir(a.opts.SchemaPath), m.Document)
}

// open loads options and the schema and opens a session over the document.
// Read-only sessions never write the document.
func (a *app) open(cmd *cobra.Command, readOnly bool) (*session.Session, error) {
	if err := a.loadOptions(cmd); err != nil {
		return nil, err
	}
	m, sch, err := a.buildSchema(false)
	if err != nil {
		return nil, err
	}

	a.document = a.documentPath(m)
	s, err := session.New(session.Config{
		Schema:       sch,
		File:         persist.NewFile(a.document, persist.WithFileLogger(a.logger)),
		Logger:       a.logger,
		Strict:       a.opts.Debug,
		SaveOnChange: a.opts.SaveOnChange,
		ReadOnly:     readOnly,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// close closes the session, saving the document unless it is read-only.
func (a *app) close() error {
	var err error
	if a.session != nil {
		err = a.session.Dispose()
		a.session = nil
	}
	if a.rules != nil {
		a.rules.Close()
		a.rules = nil
	}
	return err
}

// actions are the button actions a manifest can name.
func (a *app) actions() map[string]schema.Action {
	return map[string]schema.Action{
		"print": func(values schema.Snapshot) {
			if err := writeJSON(a.stdout, values.Map()); err != nil {
				a.logger.Error("print settings", "error", err)
			}
		},
		"log": func(values schema.Snapshot) {
			for _, key := range values.Keys() {
				v, _ := values.Get(key)
				a.logger.Info("setting", "key", key, "value", v)
			}
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
