package provision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"alma.org.ar/internal/audit"
	"alma.org.ar/internal/obs"
	"alma.org.ar/internal/schema"
	"alma.org.ar/internal/store/pg"
)

const (
	engineName         = "provision"
	defaultEncoding    = "UTF8"
	defaultMaintenance = "postgres"
)

var encodingPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Connector opens a connection to a named database on the target server.
type Connector interface {
	Open(ctx context.Context, database string) (*sql.DB, error)
}

// Engine drops, recreates and populates the schema of one database.
type Engine struct {
	connector   Connector
	database    string
	maintenance string
	encoding    string
	log         zerolog.Logger
	metrics     *obs.Metrics
}

// Option configures Engine.
type Option func(*Engine)

// WithLogger sets the logger used for step progress.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records step outcomes into m.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEncoding overrides the character encoding of the created database.
func WithEncoding(enc string) Option {
	return func(e *Engine) {
		if enc != "" {
			e.encoding = enc
		}
	}
}

// WithMaintenanceDatabase names the database connected to while the target
// is dropped and created.
func WithMaintenanceDatabase(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.maintenance = name
		}
	}
}

// New constructs an Engine for database.
func New(connector Connector, database string, opts ...Option) *Engine {
	e := &Engine{
		connector:   connector,
		database:    database,
		maintenance: defaultMaintenance,
		encoding:    defaultEncoding,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index    int
	Label    string
	Kind     schema.Kind
	Err      error
	Duration time.Duration
}

// StepError reports the step that aborted a run.
type StepError struct {
	Index int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result summarises a provisioning run. Steps lists every step attempted.
type Result struct {
	Database string
	Total    int
	Steps    []StepResult
	Err      error
	Duration time.Duration
}

// OK is true only when every step of the catalog succeeded.
func (r Result) OK() bool {
	return r.Err == nil && len(r.Steps) == r.Total && r.Total > 0
}

// Applied counts the steps that succeeded.
func (r Result) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err == nil {
			n++
		}
	}
	return n
}

// Provision drops the target database if present, recreates it and applies
// every step of c in order, each as its own statement. The first failing
// step ends the run; steps before it stay applied.
func (e *Engine) Provision(ctx context.Context, c schema.Catalog) (res Result) {
	started := time.Now()
	res = Result{Database: e.database, Total: c.Len()}
	defer func() { res.Duration = time.Since(started) }()

	if err := e.check(c); err != nil {
		res.Err = err
		return res
	}
	if err := e.recreate(ctx); err != nil {
		res.Err = err
		return res
	}

	db, err := e.connector.Open(ctx, e.database)
	if err != nil {
		res.Err = pg.Diagnose(e.database, err)
		return res
	}
	defer db.Close()

	for i, step := range c.Steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		sr := StepResult{Index: i, Label: step.Label, Kind: step.Kind, Err: err, Duration: time.Since(stepStart)}
		res.Steps = append(res.Steps, sr)
		e.metrics.ObserveStep(engineName, sr.Duration, err)
		if err != nil {
			e.log.Error().Err(err).Int("step", i+1).Str("label", step.Label).Msg("schema step failed")
			res.Err = &StepError{Index: i, Label: step.Label, Err: err}
			return res
		}
		e.log.Info().Int("step", i+1).Int("total", res.Total).Str("label", step.Label).
			Dur("duration", sr.Duration).Msg("schema step applied")
	}

	e.metrics.MarkSuccess(engineName, time.Now())
	return res
}

func (e *Engine) check(c schema.Catalog) error {
	if e.connector == nil {
		return errors.New("provision: no connector")
	}
	if e.database == "" {
		return errors.New("provision: target database is required")
	}
	if e.database == e.maintenance {
		return fmt.Errorf("provision: refusing to drop the maintenance database %s", e.maintenance)
	}
	if !encodingPattern.MatchString(e.encoding) {
		return fmt.Errorf("provision: invalid encoding %q", e.encoding)
	}
	return c.Validate()
}

func (e *Engine) recreate(ctx context.Context) error {
	admin, err := e.connector.Open(ctx, e.maintenance)
	if err != nil {
		return pg.Diagnose(e.maintenance, err)
	}
	defer admin.Close()

	if err := audit.LogEvent(ctx, "provision.drop_database", map[string]any{
		"database": e.database,
		"encoding": e.encoding,
	}); err != nil {
		return err
	}
	name := pg.QuoteIdent(e.database)
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(`drop database if exists %s with (force)`, name)); err != nil {
		return fmt.Errorf("drop database %s: %w", e.database, err)
	}
	e.log.Info().Str("database", e.database).Msg("database dropped")
	create := fmt.Sprintf(`create database %s encoding '%s' template template0`, name, e.encoding)
	if _, err := admin.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create database %s: %w", e.database, err)
	}
	e.log.Info().Str("database", e.database).Str("encoding", e.encoding).Msg("database created")
	return nil
}
