package reseed

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"alma.org.ar/internal/fixtures"
	"alma.org.ar/internal/obs"
	"alma.org.ar/internal/schema"
)

func smallSet() *fixtures.Set {
	two := 2
	method := schema.MethodCash
	paid := fixtures.NewDate(2025, time.January, 8)
	created := fixtures.Timestamp{Time: time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)}
	return &fixtures.Set{
		Volunteers: []fixtures.Volunteer{
			{ID: 1, Name: "María", LastName: "García", Email: "maria.garcia@alma.org.ar",
				RegistrationDate: fixtures.NewDate(2020, time.March, 15), Status: schema.PersonActive,
				Admin: true, Specialties: []string{"Administración", "Psicología"}},
			{ID: 2, Name: "José", LastName: "Rodríguez", Email: "jose.rodriguez@gmail.com",
				RegistrationDate: fixtures.NewDate(2021, time.May, 20), Status: schema.PersonActive},
		},
		Workshops:     []fixtures.Workshop{{ID: 1, Name: "Arte y Memoria", Capacity: 15, Enrolled: 9, Status: "activo"}},
		SupportGroups: []fixtures.SupportGroup{{ID: 1, Name: "Grupo de Apoyo Familiar", Status: "activo"}},
		Activities:    []fixtures.Activity{{ID: 1, Name: "Tarde de Cine", Status: "activo"}},
		Inventory: []fixtures.InventoryItem{{ID: 1, Name: "Proyector Epson", Quantity: 1, MinimumStock: 1,
			Price: 85000, Custodian: &two, EntryDate: fixtures.NewDate(2022, time.June, 20)}},
		Enrollments: []fixtures.Enrollment{{ID: 1, VolunteerID: 2, Type: schema.ProgramWorkshop, ItemID: 1,
			Date: fixtures.NewDate(2025, time.March, 1), Status: "confirmada"}},
		Payments: []fixtures.Payment{{ID: 1, VolunteerID: 2, Concept: "Cuota mensual - Enero 2025", Amount: 2000,
			DueDate: fixtures.NewDate(2025, time.January, 10), Method: &method, Status: schema.PaymentPaid, PaidOn: &paid}},
		Tasks:    []fixtures.Task{{ID: "task-001", Description: "Preparación del Evento Anual 2025", Created: created}},
		Subtasks: []fixtures.Subtask{{ID: "sub-001", TaskID: "task-001", Description: "Reservar salón", Created: created}},
		Participants: []fixtures.Participant{{Email: "elena.vidal@gmail.com", Active: true}},
		Profiles: []fixtures.Profile{{Email: "elena.vidal@gmail.com", Name: "Elena", LastName: "Vidal",
			Phone: "341-555-0201", City: "Rosario", AcceptsNotifications: true, AcceptsWhatsApp: true}},
		Calendar: fixtures.Series{
			Start:          fixtures.NewDate(2025, time.March, 1),
			End:            fixtures.NewDate(2025, time.March, 15),
			CadenceDays:    14,
			Kinds:          []string{schema.ProgramGroup, schema.ProgramWorkshop},
			Sources:        map[string]int{schema.ProgramGroup: 1, schema.ProgramWorkshop: 1},
			StartTime:      "10:00:00",
			EndTime:        "12:00:00",
			Coordinators:   []int{1, 2},
			CoCoordinators: []int{2, 2},
		},
		Plan: fixtures.DefaultPlan(),
	}
}

var today = fixtures.NewDate(2025, time.March, 20)

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func idRow(id int) *sqlmock.Rows { return sqlmock.NewRows([]string{"id"}).AddRow(id) }

func ok() driver.Result { return sqlmock.NewResult(0, 1) }

func expectTruncate(m sqlmock.Sqlmock, c schema.Catalog) {
	identity := map[string]bool{}
	for _, t := range c.IdentityTables() {
		identity[t] = true
	}
	m.ExpectBegin()
	m.ExpectExec(regexp.QuoteMeta(`set local session_replication_role = 'replica'`)).WillReturnResult(ok())
	for _, table := range c.TruncationOrder() {
		m.ExpectExec(regexp.QuoteMeta(`delete from "` + table + `"`)).WillReturnResult(sqlmock.NewResult(0, 3))
		if identity[table] {
			m.ExpectExec(regexp.QuoteMeta(`alter table "` + table + `" alter column "id" restart with 1`)).
				WillReturnResult(ok())
		}
	}
	m.ExpectExec(regexp.QuoteMeta(`set local session_replication_role = 'origin'`)).WillReturnResult(ok())
	m.ExpectCommit()
}

// expectGroups registers every insertion group of smallSet. When fail names
// a group, its first insert returns failErr and nothing after it is expected.
func expectGroups(m sqlmock.Sqlmock, pin driver.Value, fail string, failErr error) {
	single := func(table string, nargs int) func(error) {
		return func(err error) {
			m.ExpectBegin()
			q := m.ExpectQuery(`insert into ` + table + `\b`).WithArgs(anyArgs(nargs)...)
			if err != nil {
				q.WillReturnError(err)
				m.ExpectRollback()
				return
			}
			q.WillReturnRows(idRow(1))
			m.ExpectCommit()
		}
	}
	groups := []struct {
		name   string
		expect func(error)
	}{
		{fixtures.GroupVolunteers, func(err error) {
			m.ExpectBegin()
			q := m.ExpectQuery(`insert into voluntarios`).WithArgs(append(anyArgs(11), pin)...)
			if err != nil {
				q.WillReturnError(err)
				m.ExpectRollback()
				return
			}
			q.WillReturnRows(idRow(1))
			m.ExpectQuery(`insert into voluntarios`).WithArgs(append(anyArgs(11), pin)...).WillReturnRows(idRow(2))
			m.ExpectCommit()
		}},
		{fixtures.GroupWorkshops, single("talleres", 9)},
		{fixtures.GroupGroups, single("grupos", 7)},
		{fixtures.GroupActivities, single("actividades", 3)},
		{fixtures.GroupInventory, single("inventario", 8)},
		{fixtures.GroupEnrollments, single("inscripciones", 5)},
		{fixtures.GroupPayments, single("pagos", 7)},
		{fixtures.GroupTasks, func(err error) {
			m.ExpectBegin()
			e := m.ExpectExec(`insert into pendientes`).WithArgs(anyArgs(5)...)
			if err != nil {
				e.WillReturnError(err)
				m.ExpectRollback()
				return
			}
			e.WillReturnResult(ok())
			m.ExpectExec(`insert into pending_items`).WithArgs(anyArgs(6)...).WillReturnResult(ok())
			m.ExpectCommit()
		}},
		{fixtures.GroupCalendar, func(err error) {
			m.ExpectBegin()
			q := m.ExpectQuery(`insert into calendar_instances`).
				WithArgs(schema.ProgramGroup, 1, sqlmock.AnyArg(), "10:00:00", "12:00:00", nil, schema.CalendarCompleted)
			if err != nil {
				q.WillReturnError(err)
				m.ExpectRollback()
				return
			}
			q.WillReturnRows(idRow(10))
			m.ExpectQuery(`insert into calendar_instances`).
				WithArgs(schema.ProgramWorkshop, 1, sqlmock.AnyArg(), "10:00:00", "12:00:00", nil, schema.CalendarCompleted).
				WillReturnRows(idRow(11))
			upsert := regexp.QuoteMeta(`on conflict (instance_id, role) do update`)
			m.ExpectExec(upsert).WithArgs(10, schema.RoleCoordinator, 1).WillReturnResult(ok())
			m.ExpectExec(upsert).WithArgs(10, schema.RoleCoCoordinator, 2).WillReturnResult(ok())
			m.ExpectExec(upsert).WithArgs(11, schema.RoleCoordinator, 2).WillReturnResult(ok())
			m.ExpectCommit()
		}},
		{fixtures.GroupParticipants, func(err error) {
			m.ExpectBegin()
			q := m.ExpectQuery(`insert into participants\b`).WithArgs("elena.vidal@gmail.com", pin, true)
			if err != nil {
				q.WillReturnError(err)
				m.ExpectRollback()
				return
			}
			q.WillReturnRows(idRow(41))
			m.ExpectExec(`insert into participant_profiles`).
				WithArgs(41, "Elena", "Vidal", "341-555-0201", "Rosario", true, true).
				WillReturnResult(ok())
			m.ExpectCommit()
		}},
	}
	for _, g := range groups {
		if g.name == fail {
			g.expect(failErr)
			return
		}
		g.expect(nil)
	}
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type countingHasher struct{ calls int }

func (h *countingHasher) Hash(pin string) (string, error) {
	h.calls++
	return "hashed:" + pin, nil
}

type brokenHasher struct{}

func (brokenHasher) Hash(string) (string, error) { return "", errors.New("entropy source unavailable") }

func TestReseedWritesEveryGroup(t *testing.T) {
	db, mock := newMock(t)
	catalog := schema.Default()
	expectTruncate(mock, catalog)
	expectGroups(mock, "hashed:1234", "", nil)

	hasher := &countingHasher{}
	metrics := obs.NewMetrics()
	res := New(db, WithHasher(hasher), WithToday(today), WithMetrics(metrics)).Reseed(context.Background(), smallSet())

	if !res.OK() {
		t.Fatalf("Reseed: %v", res.Err)
	}
	if res.CredentialsDegraded {
		t.Fatal("credentials should not be degraded")
	}
	if hasher.calls != 1 {
		t.Fatalf("PIN hashed %d times, want once", hasher.calls)
	}
	if len(res.Groups) != 10 {
		t.Fatalf("groups=%d, want 10", len(res.Groups))
	}
	for i, g := range fixtures.DefaultPlan() {
		if res.Groups[i].Name != g.Name {
			t.Fatalf("group %d = %s, want %s", i, res.Groups[i].Name, g.Name)
		}
	}
	for table, want := range map[string]int{
		"voluntarios":          2,
		"calendar_instances":   2,
		"calendar_assignments": 3,
		"participant_profiles": 1,
		"pending_items":        1,
	} {
		if got := res.Rows(table); got != want {
			t.Fatalf("%s rows=%d, want %d", table, got, want)
		}
	}
	if got, err := testutil.GatherAndCount(metrics.Registry(), "almadb_rows_inserted_total"); err != nil || got != 13 {
		t.Fatalf("row series=%d err=%v, want 13", got, err)
	}
	if len(res.Truncated) != 20 || res.Truncated[0] != "participant_program_enrollments" {
		t.Fatalf("truncated=%v", res.Truncated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReseedWithoutHasherLeavesPINsNull(t *testing.T) {
	for name, opts := range map[string][]Option{
		"no hasher":     nil,
		"broken hasher": {WithHasher(brokenHasher{})},
	} {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			expectTruncate(mock, schema.Default())
			expectGroups(mock, nil, "", nil)

			res := New(db, append(opts, WithToday(today))...).Reseed(context.Background(), smallSet())
			if !res.OK() {
				t.Fatalf("degraded hashing must not fail the run: %v", res.Err)
			}
			if !res.CredentialsDegraded {
				t.Fatal("expected CredentialsDegraded")
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestReseedGroupFailureHalts(t *testing.T) {
	db, mock := newMock(t)
	expectTruncate(mock, schema.Default())
	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_pagos_user"}
	expectGroups(mock, nil, fixtures.GroupPayments, fkErr)

	res := New(db, WithToday(today)).Reseed(context.Background(), smallSet())

	var ge *GroupError
	if !errors.As(res.Err, &ge) {
		t.Fatalf("err=%v, want GroupError", res.Err)
	}
	if ge.Group != fixtures.GroupPayments || ge.Table != "pagos" || ge.Inserted != 0 {
		t.Fatalf("unexpected group error %+v", ge)
	}
	if ge.Violation != ViolationForeignKey || ge.Constraint != "fk_pagos_user" {
		t.Fatalf("violation=%q constraint=%q", ge.Violation, ge.Constraint)
	}
	if !strings.Contains(ge.Error(), "foreign key constraint fk_pagos_user violated") {
		t.Fatalf("message %q does not name the constraint", ge.Error())
	}
	if !errors.Is(res.Err, fkErr) {
		t.Fatal("constraint error must be reachable")
	}
	if len(res.Groups) != 6 {
		t.Fatalf("committed groups=%d, want 6", len(res.Groups))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("later groups must not run: %v", err)
	}
}

func TestReseedDetectsKeyDrift(t *testing.T) {
	db, mock := newMock(t)
	expectTruncate(mock, schema.Default())
	mock.ExpectBegin()
	mock.ExpectQuery(`insert into voluntarios`).WillReturnRows(idRow(13))
	mock.ExpectRollback()

	res := New(db, WithToday(today)).Reseed(context.Background(), smallSet())

	if !errors.Is(res.Err, ErrKeyMismatch) {
		t.Fatalf("err=%v, want ErrKeyMismatch", res.Err)
	}
	var ge *GroupError
	if !errors.As(res.Err, &ge) || ge.Table != "voluntarios" || ge.Inserted != 1 {
		t.Fatalf("unexpected error %+v", res.Err)
	}
	if ge.Violation != "" || ge.Constraint != "" {
		t.Fatalf("key drift is not a constraint violation: %+v", ge)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTruncateFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`set local session_replication_role = 'replica'`)).
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied to set parameter"})
	mock.ExpectRollback()

	res := New(db, WithToday(today)).Reseed(context.Background(), smallSet())
	if res.Err == nil || len(res.Groups) != 0 || len(res.Truncated) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReseedRejectsInvalidFixtures(t *testing.T) {
	db, mock := newMock(t)
	set := smallSet()
	set.Payments[0].VolunteerID = 99

	res := New(db).Reseed(context.Background(), set)
	if !errors.Is(res.Err, fixtures.ErrInvalidFixtures) {
		t.Fatalf("err=%v, want ErrInvalidFixtures", res.Err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("nothing should be executed: %v", err)
	}
}

func TestReseedReportsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	expectTruncate(mock, schema.Default())
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_participants_email"}
	expectGroups(mock, nil, fixtures.GroupParticipants, dup)

	res := New(db, WithToday(today)).Reseed(context.Background(), smallSet())

	var ge *GroupError
	if !errors.As(res.Err, &ge) {
		t.Fatalf("err=%v, want GroupError", res.Err)
	}
	if ge.Table != "participants" || ge.Violation != ViolationUnique || ge.Constraint != "uq_participants_email" {
		t.Fatalf("unexpected group error %+v", ge)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReseedRejectsUndeclaredTableWrites(t *testing.T) {
	db, mock := newMock(t)
	expectTruncate(mock, schema.Default())
	mock.ExpectBegin()
	mock.ExpectQuery(`insert into voluntarios`).WillReturnRows(idRow(1))
	mock.ExpectQuery(`insert into voluntarios`).WillReturnRows(idRow(2))
	mock.ExpectRollback()

	set := smallSet()
	set.Plan[0].Tables = []string{"actividades"}
	set.Plan[3].Tables = []string{"voluntarios"}

	res := New(db, WithToday(today)).Reseed(context.Background(), set)

	var ge *GroupError
	if !errors.As(res.Err, &ge) || ge.Group != fixtures.GroupVolunteers {
		t.Fatalf("err=%v, want GroupError for volunteers", res.Err)
	}
	if !strings.Contains(ge.Error(), "does not declare") {
		t.Fatalf("unexpected message %q", ge.Error())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("nothing may commit: %v", err)
	}
}

func TestReseedMatchesProfilesByNormalizedEmail(t *testing.T) {
	db, mock := newMock(t)
	expectTruncate(mock, schema.Default())
	expectGroups(mock, nil, "", nil)

	set := smallSet()
	set.Profiles[0].Email = "  Elena.Vidal@GMAIL.com "

	res := New(db, WithToday(today)).Reseed(context.Background(), set)
	if !res.OK() {
		t.Fatalf("Reseed: %v", res.Err)
	}
	if res.Rows("participant_profiles") != 1 {
		t.Fatalf("profiles=%d, want 1", res.Rows("participant_profiles"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
