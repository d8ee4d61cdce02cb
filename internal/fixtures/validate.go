package fixtures

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"alma.org.ar/internal/schema"
)

// ErrInvalidFixtures is wrapped by every validation failure.
var ErrInvalidFixtures = errors.New("fixtures: invalid")

// Validate checks every declared edge of the static datasets, key and email
// uniqueness, enum literals and the ordering of the insertion plan against
// the foreign keys of c. All problems are reported together.
func (s *Set) Validate(c schema.Catalog) error {
	v := &validator{}
	s.validatePlan(v, c)

	volunteers := map[int]bool{}
	v.sequential("volunteer", len(s.Volunteers), func(i int) int { return s.Volunteers[i].ID })
	emails := map[string]bool{}
	for _, vol := range s.Volunteers {
		volunteers[vol.ID] = true
		v.uniqueEmail(emails, "volunteer", vol.Email)
		v.oneOf("volunteer", vol.ID, "status", vol.Status, schema.PersonStatuses)
		if strings.TrimSpace(vol.Name) == "" {
			v.add("volunteer %d: name is required", vol.ID)
		}
		if vol.RegistrationDate.IsZero() {
			v.add("volunteer %d: registration_date is required", vol.ID)
		}
	}

	programs := map[string]map[int]bool{
		schema.ProgramWorkshop: {},
		schema.ProgramGroup:    {},
		schema.ProgramActivity: {},
	}
	v.sequential("workshop", len(s.Workshops), func(i int) int { return s.Workshops[i].ID })
	for _, w := range s.Workshops {
		programs[schema.ProgramWorkshop][w.ID] = true
	}
	v.sequential("group", len(s.SupportGroups), func(i int) int { return s.SupportGroups[i].ID })
	for _, g := range s.SupportGroups {
		programs[schema.ProgramGroup][g.ID] = true
	}
	v.sequential("activity", len(s.Activities), func(i int) int { return s.Activities[i].ID })
	for _, a := range s.Activities {
		programs[schema.ProgramActivity][a.ID] = true
	}

	v.sequential("inventory item", len(s.Inventory), func(i int) int { return s.Inventory[i].ID })
	for _, item := range s.Inventory {
		if item.Custodian != nil && !volunteers[*item.Custodian] {
			v.add("inventory item %d: custodian %d is not a volunteer", item.ID, *item.Custodian)
		}
	}

	v.sequential("enrollment", len(s.Enrollments), func(i int) int { return s.Enrollments[i].ID })
	for _, e := range s.Enrollments {
		if !volunteers[e.VolunteerID] {
			v.add("enrollment %d: volunteer %d does not exist", e.ID, e.VolunteerID)
		}
		ids, ok := programs[e.Type]
		if !ok {
			v.add("enrollment %d: type %q is not one of %v", e.ID, e.Type, schema.ProgramTypes)
			continue
		}
		if !ids[e.ItemID] {
			v.add("enrollment %d: %s %d does not exist", e.ID, e.Type, e.ItemID)
		}
	}

	v.sequential("payment", len(s.Payments), func(i int) int { return s.Payments[i].ID })
	for _, p := range s.Payments {
		if !volunteers[p.VolunteerID] {
			v.add("payment %d: volunteer %d does not exist", p.ID, p.VolunteerID)
		}
		v.oneOf("payment", p.ID, "status", p.Status, schema.PaymentStatuses)
		if p.Method != nil {
			v.oneOf("payment", p.ID, "method", *p.Method, schema.PaymentMethods)
		}
	}

	tasks := map[string]bool{}
	for _, t := range s.Tasks {
		if tasks[t.ID] {
			v.add("task %s: duplicate id", t.ID)
		}
		tasks[t.ID] = true
	}
	subtasks := map[string]bool{}
	for _, st := range s.Subtasks {
		if subtasks[st.ID] {
			v.add("subtask %s: duplicate id", st.ID)
		}
		subtasks[st.ID] = true
		if !tasks[st.TaskID] {
			v.add("subtask %s: task %s does not exist", st.ID, st.TaskID)
		}
	}

	participants := map[string]bool{}
	for _, p := range s.Participants {
		v.uniqueEmail(participants, "participant", p.Email)
	}
	profiles := map[string]bool{}
	for _, pr := range s.Profiles {
		key := NormalizeEmail(pr.Email)
		if !participants[key] {
			v.add("profile %s: no participant with that email", pr.Email)
		}
		if profiles[key] {
			v.add("profile %s: participant already has a profile", pr.Email)
		}
		profiles[key] = true
	}

	s.validateSeries(v, volunteers, programs)
	return v.err()
}

// validatePlan requires DependsOn to point backwards and every table a group
// writes to reference only tables written by the same or an earlier group.
// Referenced tables no group writes stay empty and are not constrained.
func (s *Set) validatePlan(v *validator, c schema.Catalog) {
	references := map[string][]string{}
	for _, st := range c.Steps {
		if st.Kind == schema.CreateTable {
			references[st.Table] = st.References
		}
	}
	writer := map[string]int{}
	for i, g := range s.Plan {
		for _, table := range g.Tables {
			if j, ok := writer[table]; ok {
				v.add("table %s: written by groups %s and %s", table, s.Plan[j].Name, g.Name)
				continue
			}
			writer[table] = i
		}
	}

	seen := map[string]bool{}
	for i, g := range s.Plan {
		if seen[g.Name] {
			v.add("group %s: declared twice", g.Name)
		}
		for _, dep := range g.DependsOn {
			if !seen[dep] {
				v.add("group %s (position %d): depends on %s which is not declared earlier", g.Name, i, dep)
			}
		}
		seen[g.Name] = true

		if len(g.Tables) == 0 {
			v.add("group %s: no tables", g.Name)
		}
		for _, table := range g.Tables {
			refs, ok := references[table]
			if !ok {
				v.add("group %s: table %s is not created by the schema", g.Name, table)
				continue
			}
			for _, ref := range refs {
				if j, ok := writer[ref]; ok && j > i {
					v.add("group %s (position %d): %s references %s, written later by group %s",
						g.Name, i, table, ref, s.Plan[j].Name)
				}
			}
		}
	}
}

func (s *Set) validateSeries(v *validator, volunteers map[int]bool, programs map[string]map[int]bool) {
	c := s.Calendar
	if c.Start.IsZero() || c.End.IsZero() || c.End.Before(c.Start.Time) {
		v.add("calendar: invalid range %s..%s", c.Start, c.End)
	}
	if c.CadenceDays <= 0 {
		v.add("calendar: cadence_days must be positive")
	}
	if len(c.Kinds) == 0 {
		v.add("calendar: at least one kind is required")
	}
	for _, kind := range c.Kinds {
		ids, ok := programs[kind]
		if !ok {
			v.add("calendar: kind %q is not one of %v", kind, schema.ProgramTypes)
			continue
		}
		src, ok := c.Sources[kind]
		if !ok {
			v.add("calendar: no source for kind %s", kind)
		} else if !ids[src] {
			v.add("calendar: source %s %d does not exist", kind, src)
		}
	}
	if len(c.Coordinators) == 0 || len(c.CoCoordinators) == 0 {
		v.add("calendar: coordinator rotations must not be empty")
	}
	for _, id := range slices.Concat(c.Coordinators, c.CoCoordinators) {
		if !volunteers[id] {
			v.add("calendar: staff %d is not a volunteer", id)
		}
	}
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// sequential requires ids 1..n in declaration order, the keys an identity
// column assigns after a counter reset.
func (v *validator) sequential(kind string, n int, id func(int) int) {
	for i := 0; i < n; i++ {
		if got := id(i); got != i+1 {
			v.add("%s at position %d: id %d, want %d", kind, i, got, i+1)
			return
		}
	}
}

func (v *validator) uniqueEmail(seen map[string]bool, kind, email string) {
	key := NormalizeEmail(email)
	if key == "" {
		v.add("%s: empty email", kind)
		return
	}
	if seen[key] {
		v.add("%s %s: duplicate email", kind, email)
	}
	seen[key] = true
}

func (v *validator) oneOf(kind string, id int, field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.add("%s %d: %s %q is not one of %v", kind, id, field, value, allowed)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalidFixtures, strings.Join(v.problems, "\n  "))
}
