package reseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"alma.org.ar/internal/fixtures"
)

type inserter func(ctx context.Context, tx *sql.Tx, t *tally) error

// seeding carries the state shared across groups of one run: the PIN hash
// and the keys captured for rows without declared ids.
type seeding struct {
	set         *fixtures.Set
	pinHash     *string
	instances   []fixtures.Instance
	assignments []fixtures.Assignment
	instanceIDs map[int]int    // tick -> calendar_instances.id
	participant map[string]int // email -> participants.id
}

func (s *seeding) inserters() map[string]inserter {
	return map[string]inserter{
		fixtures.GroupVolunteers:   s.volunteers,
		fixtures.GroupWorkshops:    s.workshops,
		fixtures.GroupGroups:       s.groups,
		fixtures.GroupActivities:   s.activities,
		fixtures.GroupInventory:    s.inventory,
		fixtures.GroupEnrollments:  s.enrollments,
		fixtures.GroupPayments:     s.payments,
		fixtures.GroupTasks:        s.tasks,
		fixtures.GroupCalendar:     s.calendar,
		fixtures.GroupParticipants: s.participants,
	}
}

func insertReturning(ctx context.Context, tx *sql.Tx, t *tally, query string, args ...any) (int, error) {
	var id int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	t.add()
	return id, nil
}

// insertKeyed inserts a row whose fixture declares its id and checks the
// server assigned the same one.
func insertKeyed(ctx context.Context, tx *sql.Tx, t *tally, want int, query string, args ...any) error {
	got, err := insertReturning(ctx, tx, t, query, args...)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s got id %d, fixture declares %d", ErrKeyMismatch, t.table, got, want)
	}
	return nil
}

func insertPlain(ctx context.Context, tx *sql.Tx, t *tally, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	t.add()
	return nil
}

func (s *seeding) volunteers(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("voluntarios")
	const q = `
		insert into voluntarios
			(name, last_name, age, gender, phone, email, registration_date, birth_date,
			 status, specialties, is_admin, pin_hash)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		returning id`
	for _, v := range s.set.Volunteers {
		specialties, err := json.Marshal(v.Specialties)
		if err != nil {
			return fmt.Errorf("volunteer %d specialties: %w", v.ID, err)
		}
		if err := insertKeyed(ctx, tx, t, v.ID, q,
			v.Name, v.LastName, v.Age, v.Gender, v.Phone, v.Email, v.RegistrationDate, v.BirthDate,
			v.Status, string(specialties), v.Admin, s.pinHash,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) workshops(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("talleres")
	const q = `
		insert into talleres
			(name, description, instructor, date, schedule, capacity, cost, enrolled, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning id`
	for _, w := range s.set.Workshops {
		if err := insertKeyed(ctx, tx, t, w.ID, q,
			w.Name, w.Description, w.Instructor, w.Date, w.Schedule, w.Capacity, w.Cost, w.Enrolled, w.Status,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) groups(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("grupos")
	const q = `
		insert into grupos
			(name, description, coordinator, day, schedule, participants, status)
		values ($1,$2,$3,$4,$5,$6,$7)
		returning id`
	for _, g := range s.set.SupportGroups {
		if err := insertKeyed(ctx, tx, t, g.ID, q,
			g.Name, g.Description, g.Coordinator, g.Day, g.Schedule, g.Participants, g.Status,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) activities(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("actividades")
	const q = `insert into actividades (name, description, status) values ($1,$2,$3) returning id`
	for _, a := range s.set.Activities {
		if err := insertKeyed(ctx, tx, t, a.ID, q, a.Name, a.Description, a.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) inventory(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("inventario")
	const q = `
		insert into inventario
			(name, category, quantity, minimum_stock, price, supplier, assigned_volunteer_id, entry_date)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning id`
	for _, item := range s.set.Inventory {
		if err := insertKeyed(ctx, tx, t, item.ID, q,
			item.Name, item.Category, item.Quantity, item.MinimumStock,
			strconv.FormatFloat(item.Price, 'f', 2, 64), item.Supplier, item.Custodian, item.EntryDate,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) enrollments(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("inscripciones")
	const q = `
		insert into inscripciones (user_id, type, item_id, enrollment_date, status)
		values ($1,$2,$3,$4,$5)
		returning id`
	for _, e := range s.set.Enrollments {
		if err := insertKeyed(ctx, tx, t, e.ID, q, e.VolunteerID, e.Type, e.ItemID, e.Date, e.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) payments(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("pagos")
	const q = `
		insert into pagos (user_id, concept, amount, due_date, payment_method, status, payment_date)
		values ($1,$2,$3,$4,$5,$6,$7)
		returning id`
	for _, p := range s.set.Payments {
		if err := insertKeyed(ctx, tx, t, p.ID, q,
			p.VolunteerID, p.Concept, p.Amount, p.DueDate, p.Method, p.Status, p.PaidOn,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) tasks(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("pendientes")
	for _, task := range s.set.Tasks {
		if err := insertPlain(ctx, tx, t, `
			insert into pendientes (id, description, assigned_volunteer_id, completed, created_date)
			values ($1,$2,$3,$4,$5)`,
			task.ID, task.Description, task.AssignedTo, task.Completed, task.Created,
		); err != nil {
			return err
		}
	}
	t.at("pending_items")
	for _, st := range s.set.Subtasks {
		if err := insertPlain(ctx, tx, t, `
			insert into pending_items (id, pending_id, description, assigned_volunteer_id, completed, created_date)
			values ($1,$2,$3,$4,$5,$6)`,
			st.ID, st.TaskID, st.Description, st.AssignedTo, st.Completed, st.Created,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) calendar(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("calendar_instances")
	for _, inst := range s.instances {
		id, err := insertReturning(ctx, tx, t, `
			insert into calendar_instances (type, source_id, date, start_time, end_time, notes, status)
			values ($1,$2,$3,$4,$5,$6,$7)
			returning id`,
			inst.Kind, inst.SourceID, inst.Date, inst.StartTime, inst.EndTime, nil, inst.Status,
		)
		if err != nil {
			return err
		}
		s.instanceIDs[inst.Tick] = id
	}
	t.at("calendar_assignments")
	for _, a := range s.assignments {
		instanceID, ok := s.instanceIDs[a.Tick]
		if !ok {
			return fmt.Errorf("assignment for tick %d has no instance", a.Tick)
		}
		if err := insertPlain(ctx, tx, t, `
			insert into calendar_assignments (instance_id, role, volunteer_id)
			values ($1,$2,$3)
			on conflict (instance_id, role) do update
			set volunteer_id = excluded.volunteer_id, updated_at = now()`,
			instanceID, a.Role, a.VolunteerID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeding) participants(ctx context.Context, tx *sql.Tx, t *tally) error {
	t.at("participants")
	for _, p := range s.set.Participants {
		id, err := insertReturning(ctx, tx, t, `
			insert into participants (email, pin_hash, is_active)
			values ($1,$2,$3)
			returning id`,
			p.Email, s.pinHash, p.Active,
		)
		if err != nil {
			return err
		}
		s.participant[fixtures.NormalizeEmail(p.Email)] = id
	}
	t.at("participant_profiles")
	for _, pr := range s.set.Profiles {
		id, ok := s.participant[fixtures.NormalizeEmail(pr.Email)]
		if !ok {
			return fmt.Errorf("profile %s has no participant", pr.Email)
		}
		if err := insertPlain(ctx, tx, t, `
			insert into participant_profiles
				(participant_id, name, last_name, phone, city, accepts_notifications, accepts_whatsapp)
			values ($1,$2,$3,$4,$5,$6,$7)`,
			id, pr.Name, pr.LastName, pr.Phone, pr.City, pr.AcceptsNotifications, pr.AcceptsWhatsApp,
		); err != nil {
			return err
		}
	}
	return nil
}
