package reseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"alma.org.ar/internal/audit"
	"alma.org.ar/internal/credentials"
	"alma.org.ar/internal/fixtures"
	"alma.org.ar/internal/obs"
	"alma.org.ar/internal/schema"
	"alma.org.ar/internal/store/pg"
)

const engineName = "reseed"

// ErrKeyMismatch reports that the server assigned a different surrogate key
// than the fixture declares, which breaks every reference to that row.
var ErrKeyMismatch = errors.New("reseed: assigned key differs from fixture key")

// Engine empties the data tables of a provisioned database and writes the
// fixture set.
type Engine struct {
	db      *sql.DB
	catalog schema.Catalog
	hasher  credentials.Hasher
	pin     string
	today   fixtures.Date
	log     zerolog.Logger
	metrics *obs.Metrics
}

// Option configures Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHasher sets the PIN hashing collaborator. Without one every pin_hash
// is written as NULL.
func WithHasher(h credentials.Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// WithPIN overrides the default PIN given to seeded people.
func WithPIN(pin string) Option {
	return func(e *Engine) {
		if pin != "" {
			e.pin = pin
		}
	}
}

// WithToday fixes the date calendar statuses are computed against.
func WithToday(d fixtures.Date) Option {
	return func(e *Engine) { e.today = d }
}

// WithCatalog replaces the schema whose tables are emptied.
func WithCatalog(c schema.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// DefaultPIN is given to every seeded volunteer and participant.
const DefaultPIN = "1234"

// New constructs an Engine writing through db.
func New(db *sql.DB, opts ...Option) *Engine {
	now := time.Now()
	e := &Engine{
		db:      db,
		catalog: schema.Default(),
		pin:     DefaultPIN,
		today:   fixtures.NewDate(now.Year(), now.Month(), now.Day()),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Violation kinds reported by GroupError.
const (
	ViolationUnique     = "unique"
	ViolationForeignKey = "foreign key"
)

// GroupError reports the insertion group that halted a run. Groups before it
// stay committed. Violation and Constraint are set when the server rejected
// a row on a unique or foreign-key constraint.
type GroupError struct {
	Group      string
	Table      string
	Inserted   int
	Violation  string
	Constraint string
	Err        error
}

func newGroupError(group, table string, inserted int, err error) *GroupError {
	ge := &GroupError{Group: group, Table: table, Inserted: inserted, Err: err}
	switch {
	case pg.IsUniqueViolation(err):
		ge.Violation = ViolationUnique
	case pg.IsForeignKeyViolation(err):
		ge.Violation = ViolationForeignKey
	}
	if ge.Violation != "" {
		ge.Constraint = pg.ConstraintName(err)
	}
	return ge
}

func (e *GroupError) Error() string {
	msg := "group " + e.Group
	if e.Table != "" {
		msg += fmt.Sprintf(": %s after %d rows", e.Table, e.Inserted)
	}
	if e.Violation != "" {
		msg += fmt.Sprintf(": %s constraint %s violated", e.Violation, e.Constraint)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// TableRows is the number of rows written to one table.
type TableRows struct {
	Table string
	Rows  int
}

// GroupResult describes one committed insertion group.
type GroupResult struct {
	Name     string
	Tables   []TableRows
	Duration time.Duration
}

// Total is the row count over every table of the group.
func (g GroupResult) Total() int {
	n := 0
	for _, t := range g.Tables {
		n += t.Rows
	}
	return n
}

// Result summarises a reseed run.
type Result struct {
	Truncated []string
	Groups    []GroupResult
	// CredentialsDegraded is set when no PIN hash could be produced and
	// pin_hash columns were left NULL.
	CredentialsDegraded bool
	Today               fixtures.Date
	Err                 error
	Duration            time.Duration
}

// OK reports whether every group committed.
func (r Result) OK() bool { return r.Err == nil }

// Rows returns the number of rows written to table.
func (r Result) Rows(table string) int {
	for _, g := range r.Groups {
		for _, t := range g.Tables {
			if t.Table == table {
				return t.Rows
			}
		}
	}
	return 0
}

// Reseed empties every data table, resets surrogate-key counters and
// inserts set group by group. Each group commits on its own; the first
// failing group halts the run.
func (e *Engine) Reseed(ctx context.Context, set *fixtures.Set) (res Result) {
	started := time.Now()
	res.Today = e.today
	defer func() { res.Duration = time.Since(started) }()

	if e.db == nil {
		res.Err = errors.New("reseed: no database")
		return res
	}
	if set == nil {
		res.Err = errors.New("reseed: no fixtures")
		return res
	}
	if err := e.catalog.Validate(); err != nil {
		res.Err = err
		return res
	}
	if err := set.Validate(e.catalog); err != nil {
		res.Err = err
		return res
	}

	pinHash, err := credentials.HashOrNil(e.hasher, e.pin)
	if err != nil {
		res.CredentialsDegraded = true
		e.log.Warn().Err(err).Msg("PIN hashing unavailable: seeded people get no PIN and cannot sign in")
	}

	if err := e.truncate(ctx); err != nil {
		res.Err = err
		return res
	}
	res.Truncated = e.catalog.TruncationOrder()

	instances := set.Instances(e.today)
	s := &seeding{
		set:         set,
		pinHash:     pinHash,
		instances:   instances,
		assignments: set.Assignments(instances),
		instanceIDs: map[int]int{},
		participant: map[string]int{},
	}
	inserters := s.inserters()

	for _, g := range set.Plan {
		insert, ok := inserters[g.Name]
		if !ok {
			res.Err = newGroupError(g.Name, "", 0, errors.New("no inserter for group"))
			return res
		}
		gr, err := e.runGroup(ctx, g, insert)
		e.metrics.ObserveStep(engineName, gr.Duration, err)
		if err != nil {
			ev := e.log.Error().Err(err).Str("group", g.Name)
			var ge *GroupError
			if errors.As(err, &ge) && ge.Violation != "" {
				ev = ev.Str("table", ge.Table).Str("violation", ge.Violation).Str("constraint", ge.Constraint)
			}
			ev.Msg("insertion group failed")
			res.Err = err
			return res
		}
		for _, t := range gr.Tables {
			e.metrics.AddRows(t.Table, t.Rows)
		}
		e.log.Info().Str("group", g.Name).Int("rows", gr.Total()).Dur("duration", gr.Duration).Msg("group committed")
		res.Groups = append(res.Groups, gr)
	}

	e.metrics.MarkSuccess(engineName, time.Now())
	return res
}

// truncate empties every data table in reverse creation order inside one
// transaction, with foreign-key enforcement suspended for the session.
func (e *Engine) truncate(ctx context.Context) error {
	order := e.catalog.TruncationOrder()
	if err := audit.LogEvent(ctx, "reseed.truncate", map[string]any{"tables": len(order)}); err != nil {
		return err
	}
	identity := map[string]bool{}
	for _, t := range e.catalog.IdentityTables() {
		identity[t] = true
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reseed: begin truncate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `set local session_replication_role = 'replica'`); err != nil {
		return fmt.Errorf("reseed: disable foreign keys: %w", err)
	}
	for _, table := range order {
		if _, err := tx.ExecContext(ctx, `delete from `+pg.QuoteIdent(table)); err != nil {
			return fmt.Errorf("reseed: empty %s: %w", table, err)
		}
		if identity[table] {
			if _, err := tx.ExecContext(ctx, `alter table `+pg.QuoteIdent(table)+` alter column "id" restart with 1`); err != nil {
				return fmt.Errorf("reseed: reset %s key counter: %w", table, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `set local session_replication_role = 'origin'`); err != nil {
		return fmt.Errorf("reseed: enable foreign keys: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reseed: commit truncate: %w", err)
	}
	e.log.Info().Int("tables", len(order)).Msg("data tables emptied")
	return nil
}

func (e *Engine) runGroup(ctx context.Context, g fixtures.Group, insert inserter) (GroupResult, error) {
	started := time.Now()
	t := &tally{}
	gr := GroupResult{Name: g.Name}

	err := func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := insert(ctx, tx, t); err != nil {
			return err
		}
		for _, r := range t.rows {
			if !slices.Contains(g.Tables, r.Table) {
				return fmt.Errorf("wrote %s, which the group does not declare", r.Table)
			}
		}
		t.table = ""
		return tx.Commit()
	}()
	gr.Duration = time.Since(started)
	if err != nil {
		return gr, newGroupError(g.Name, t.table, t.total(), err)
	}
	gr.Tables = t.rows
	return gr, nil
}

// tally counts rows per table inside one group.
type tally struct {
	table string
	rows  []TableRows
}

// at starts counting rows for table.
func (t *tally) at(table string) {
	t.table = table
	t.rows = append(t.rows, TableRows{Table: table})
}

func (t *tally) add() { t.rows[len(t.rows)-1].Rows++ }

func (t *tally) total() int {
	n := 0
	for _, r := range t.rows {
		n += r.Rows
	}
	return n
}
