package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"alma.org.ar/internal/audit"
	"alma.org.ar/internal/config"
	"alma.org.ar/internal/confirm"
	"alma.org.ar/internal/credentials"
	"alma.org.ar/internal/fixtures"
	"alma.org.ar/internal/ids"
	"alma.org.ar/internal/obs"
	"alma.org.ar/internal/provision"
	"alma.org.ar/internal/reseed"
	"alma.org.ar/internal/schema"
	"alma.org.ar/internal/store/pg"
)

// errDeclined ends a run the operator did not confirm. It maps to exit 0.
var errDeclined = errors.New("declined by operator")

// session is what both commands hold once the operator has confirmed.
type session struct {
	cfg     config.Config
	ctx     context.Context
	log     zerolog.Logger
	metrics *obs.Metrics
	admin   *sql.DB
	lock    *pg.Lock
}

func (r *runner) start(c *cli.Context, command, question string) (*session, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}
	runID := ids.NewRunID()
	log := obs.Configure(obs.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: r.logOut,
	}).With().Str("run_id", runID).Str("command", command).Logger()

	fmt.Fprintf(r.out, "Base de datos: %s\nServidor:      %s\nUsuario:       %s\n\n",
		cfg.Database.Name, cfg.Database.Address(), cfg.Database.User)

	gate := confirm.Gate{In: r.in, Out: r.out, AssumeYes: c.Bool("yes"), Interactive: r.interactive}
	ok, err := gate.Confirm(question)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errDeclined
	}

	ctx := audit.WithOperator(audit.WithRunID(c.Context, runID), cfg.Database.User)
	admin, err := pg.Open(ctx, cfg.Database.DSN(cfg.Database.Maintenance))
	if err != nil {
		return nil, pg.Diagnose(cfg.Database.Maintenance, err)
	}
	lock, err := pg.AcquireRunLock(ctx, admin, pg.LockKey)
	if err != nil {
		_ = admin.Close()
		if errors.Is(err, pg.ErrLocked) {
			return nil, fmt.Errorf("another almadb run is active on %s: %w", cfg.Database.Address(), err)
		}
		return nil, err
	}

	metrics := obs.NewMetrics()
	metrics.InitBuildInfo(obs.Version, obs.Commit)
	log.Info().Str("database", cfg.Database.Name).Str("server", cfg.Database.Address()).Msg("run started")
	return &session{cfg: cfg, ctx: ctx, log: log, metrics: metrics, admin: admin, lock: lock}, nil
}

func (s *session) close() {
	if err := s.lock.Release(context.WithoutCancel(s.ctx)); err != nil {
		s.log.Warn().Err(err).Msg("release run lock")
	}
	_ = s.admin.Close()
	if err := s.metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
		s.log.Warn().Err(err).Str("path", s.cfg.MetricsTextfile).Msg("write metrics textfile")
	}
}

// declined turns an unconfirmed run into a clean exit.
func (r *runner) declined(err error) error {
	if errors.Is(err, errDeclined) {
		fmt.Fprintln(r.out, "Operación cancelada.")
		return nil
	}
	return err
}

func (r *runner) provision(c *cli.Context) error {
	s, err := r.start(c, "provision",
		"Se eliminará la base de datos y todos sus datos. ¿Continuar?")
	if err != nil {
		return r.declined(err)
	}
	defer s.close()

	connector := pg.Connector{DSN: s.cfg.Database.DSN}
	engine := provision.New(connector, s.cfg.Database.Name,
		provision.WithLogger(s.log),
		provision.WithMetrics(s.metrics),
		provision.WithMaintenanceDatabase(s.cfg.Database.Maintenance),
	)
	res := engine.Provision(s.ctx, schema.Default())
	printProvision(r.out, res)
	if !res.OK() {
		return fmt.Errorf("provision %s: %w", res.Database, res.Err)
	}
	return nil
}

func printProvision(w io.Writer, res provision.Result) {
	if res.OK() {
		fmt.Fprintf(w, "Esquema aplicado: %d/%d pasos en %s\n", res.Applied(), res.Total, res.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "Esquema incompleto: %d/%d pasos aplicados\n", res.Applied(), res.Total)
	var stepErr *provision.StepError
	if errors.As(res.Err, &stepErr) {
		fmt.Fprintf(w, "Falló el paso %d (%s)\n", stepErr.Index+1, stepErr.Label)
	}
}

func (r *runner) reseed(c *cli.Context) error {
	set, err := fixtures.Load()
	if err != nil {
		return err
	}
	var opts []reseed.Option
	if raw := c.String("today"); raw != "" {
		today, err := fixtures.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("--today: %w", err)
		}
		opts = append(opts, reseed.WithToday(today))
	}

	s, err := r.start(c, "reseed",
		"Se borrarán todos los datos y se cargarán los datos de ejemplo. ¿Continuar?")
	if err != nil {
		return r.declined(err)
	}
	defer s.close()

	if !c.Bool("no-pin") {
		opts = append(opts, reseed.WithHasher(credentials.NewBcrypt(s.cfg.Seed.PINCost)))
	}
	opts = append(opts,
		reseed.WithLogger(s.log),
		reseed.WithMetrics(s.metrics),
		reseed.WithPIN(s.cfg.Seed.DefaultPIN),
	)

	db, err := pg.Open(s.ctx, s.cfg.Database.DSN(s.cfg.Database.Name))
	if err != nil {
		return pg.Diagnose(s.cfg.Database.Name, err)
	}
	defer db.Close()

	res := reseed.New(db, opts...).Reseed(s.ctx, set)
	printReseed(r.out, res, set, s.cfg.Seed.DefaultPIN)
	if !res.OK() {
		return fmt.Errorf("reseed %s: %w", s.cfg.Database.Name, res.Err)
	}
	return nil
}

func printReseed(w io.Writer, res reseed.Result, set *fixtures.Set, pin string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range res.Groups {
		for _, t := range g.Tables {
			fmt.Fprintf(tw, "  %s\t%s filas\n", t.Table, humanize.Comma(int64(t.Rows)))
		}
	}
	_ = tw.Flush()
	if !res.OK() {
		fmt.Fprintf(w, "Carga incompleta: %d grupos confirmados\n", len(res.Groups))
		var ge *reseed.GroupError
		if errors.As(res.Err, &ge) {
			fmt.Fprintf(w, "Falló el grupo %s en la tabla %s tras %d filas\n", ge.Group, ge.Table, ge.Inserted)
			if ge.Violation != "" {
				fmt.Fprintf(w, "Restricción %s violada: %s\n", ge.Violation, ge.Constraint)
			}
		}
		return
	}
	fmt.Fprintf(w, "\nDatos cargados en %s (fecha de referencia %s)\n\n", res.Duration.Round(time.Millisecond), res.Today)

	fmt.Fprintln(w, "Voluntarios:")
	for _, v := range set.Volunteers {
		role := ""
		if v.Admin {
			role = "admin"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", v.ID, v.FullName(), v.Email, role)
	}
	_ = tw.Flush()
	fmt.Fprintln(w, "Participantes:")
	for _, p := range set.Participants {
		fmt.Fprintf(tw, "  %s\n", p.Email)
	}
	_ = tw.Flush()

	if res.CredentialsDegraded {
		fmt.Fprintln(w, "\nPIN: sin configurar, nadie podrá iniciar sesión")
		return
	}
	fmt.Fprintf(w, "\nPIN para todos: %s\n", pin)
}
