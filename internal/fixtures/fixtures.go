// Package fixtures holds the representative dataset a reseed writes, plus
// the generators for the recurring calendar.
package fixtures

import (
	"bytes"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"alma.org.ar/internal/schema"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Set is the complete fixture catalog.
type Set struct {
	Volunteers    []Volunteer
	Workshops     []Workshop
	SupportGroups []SupportGroup
	Activities    []Activity
	Inventory     []InventoryItem
	Enrollments   []Enrollment
	Payments      []Payment
	Tasks         []Task
	Subtasks      []Subtask
	Participants  []Participant
	Profiles      []Profile
	Calendar      Series
	// Plan is the ordered list of insertion groups.
	Plan []Group
}

// Load decodes the embedded datasets and validates them against the default
// schema.
func Load() (*Set, error) {
	s, err := decode()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(schema.Default()); err != nil {
		return nil, err
	}
	return s, nil
}

func decode() (*Set, error) {
	s := &Set{Plan: DefaultPlan()}
	var programs struct {
		Workshops  []Workshop     `yaml:"workshops"`
		Groups     []SupportGroup `yaml:"groups"`
		Activities []Activity     `yaml:"activities"`
	}
	var tasks struct {
		Tasks    []Task    `yaml:"tasks"`
		Subtasks []Subtask `yaml:"subtasks"`
	}
	var participants struct {
		Participants []Participant `yaml:"participants"`
		Profiles     []Profile     `yaml:"profiles"`
	}
	files := []struct {
		name string
		out  any
	}{
		{"volunteers.yaml", &s.Volunteers},
		{"programs.yaml", &programs},
		{"inventory.yaml", &s.Inventory},
		{"enrollments.yaml", &s.Enrollments},
		{"payments.yaml", &s.Payments},
		{"tasks.yaml", &tasks},
		{"participants.yaml", &participants},
		{"calendar.yaml", &s.Calendar},
	}
	for _, f := range files {
		if err := decodeFile(f.name, f.out); err != nil {
			return nil, err
		}
	}
	s.Workshops, s.SupportGroups, s.Activities = programs.Workshops, programs.Groups, programs.Activities
	s.Tasks, s.Subtasks = tasks.Tasks, tasks.Subtasks
	s.Participants, s.Profiles = participants.Participants, participants.Profiles
	return s, nil
}

func decodeFile(name string, out any) error {
	raw, err := dataFS.ReadFile("data/" + name)
	if err != nil {
		return fmt.Errorf("fixtures: read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("fixtures: decode %s: %w", name, err)
	}
	return nil
}

// Instances generates the calendar series as of today.
func (s *Set) Instances(today Date) []Instance {
	return GenerateInstances(s.Calendar, today)
}

// Assignments staffs the given instances using the series rotations.
func (s *Set) Assignments(instances []Instance) []Assignment {
	return GenerateAssignments(instances, s.Calendar.Coordinators, s.Calendar.CoCoordinators)
}

// Group is one insertion phase: its tables are written and committed
// together, after every group named in DependsOn.
type Group struct {
	Name      string
	Tables    []string
	DependsOn []string
}

// Insertion group names.
const (
	GroupVolunteers   = "volunteers"
	GroupWorkshops    = "workshops"
	GroupGroups       = "groups"
	GroupActivities   = "activities"
	GroupInventory    = "inventory"
	GroupEnrollments  = "enrollments"
	GroupPayments     = "payments"
	GroupTasks        = "tasks"
	GroupCalendar     = "calendar"
	GroupParticipants = "participants"
)

// DefaultPlan returns the insertion groups in forward dependency order.
func DefaultPlan() []Group {
	return []Group{
		{Name: GroupVolunteers, Tables: []string{"voluntarios"}},
		{Name: GroupWorkshops, Tables: []string{"talleres"}},
		{Name: GroupGroups, Tables: []string{"grupos"}},
		{Name: GroupActivities, Tables: []string{"actividades"}},
		{Name: GroupInventory, Tables: []string{"inventario"}, DependsOn: []string{GroupVolunteers}},
		{Name: GroupEnrollments, Tables: []string{"inscripciones"},
			DependsOn: []string{GroupVolunteers, GroupWorkshops, GroupGroups, GroupActivities}},
		{Name: GroupPayments, Tables: []string{"pagos"}, DependsOn: []string{GroupVolunteers}},
		{Name: GroupTasks, Tables: []string{"pendientes", "pending_items"}},
		{Name: GroupCalendar, Tables: []string{"calendar_instances", "calendar_assignments"},
			DependsOn: []string{GroupVolunteers, GroupWorkshops, GroupGroups}},
		{Name: GroupParticipants, Tables: []string{"participants", "participant_profiles"}},
	}
}
