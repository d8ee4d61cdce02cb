package fixtures

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Date is a calendar day decoded from "YYYY-MM-DD".
type Date struct{ time.Time }

// NewDate returns the UTC midnight of the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d *Date) UnmarshalYAML(n *yaml.Node) error {
	parsed, err := ParseDate(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: date %q: %w", n.Line, n.Value, err)
	}
	*d = parsed
	return nil
}

func (d Date) String() string { return d.Format(DateLayout) }

// Value passes the day to the driver; the zero Date is NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Timestamp is a local date-time decoded from "YYYY-MM-DD HH:MM:SS".
type Timestamp struct{ time.Time }

func (ts *Timestamp) UnmarshalYAML(n *yaml.Node) error {
	t, err := time.Parse(TimestampLayout, n.Value)
	if err != nil {
		return fmt.Errorf("line %d: timestamp %q: %w", n.Line, n.Value, err)
	}
	ts.Time = t
	return nil
}

func (ts Timestamp) Value() (driver.Value, error) {
	if ts.IsZero() {
		return nil, nil
	}
	return ts.Time, nil
}

type Volunteer struct {
	ID               int      `yaml:"id"`
	Name             string   `yaml:"name"`
	LastName         string   `yaml:"last_name"`
	Age              int      `yaml:"age"`
	Gender           string   `yaml:"gender"`
	Phone            string   `yaml:"phone"`
	Email            string   `yaml:"email"`
	RegistrationDate Date     `yaml:"registration_date"`
	BirthDate        Date     `yaml:"birth_date"`
	Status           string   `yaml:"status"`
	Admin            bool     `yaml:"is_admin"`
	Specialties      []string `yaml:"specialties"`
}

// FullName is "Name LastName".
func (v Volunteer) FullName() string { return v.Name + " " + v.LastName }

type Workshop struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instructor  string `yaml:"instructor"`
	Date        Date   `yaml:"date"`
	Schedule    string `yaml:"schedule"`
	// Enrolled should not exceed Capacity; the database does not enforce it.
	Capacity int    `yaml:"capacity"`
	Cost     int    `yaml:"cost"`
	Enrolled int    `yaml:"enrolled"`
	Status   string `yaml:"status"`
}

type SupportGroup struct {
	ID           int    `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Coordinator  string `yaml:"coordinator"`
	Day          string `yaml:"day"`
	Schedule     string `yaml:"schedule"`
	Participants int    `yaml:"participants"`
	Status       string `yaml:"status"`
}

type Activity struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

type InventoryItem struct {
	ID           int     `yaml:"id"`
	Name         string  `yaml:"name"`
	Category     string  `yaml:"category"`
	Quantity     int     `yaml:"quantity"`
	MinimumStock int     `yaml:"minimum_stock"`
	Price        float64 `yaml:"price"`
	Supplier     string  `yaml:"supplier"`
	// Custodian is the volunteer holding the item, if any.
	Custodian *int `yaml:"custodian"`
	EntryDate Date `yaml:"entry_date"`
}

type Enrollment struct {
	ID          int    `yaml:"id"`
	VolunteerID int    `yaml:"volunteer"`
	Type        string `yaml:"type"`
	ItemID      int    `yaml:"item"`
	Date        Date   `yaml:"date"`
	Status      string `yaml:"status"`
}

type Payment struct {
	ID          int     `yaml:"id"`
	VolunteerID int     `yaml:"volunteer"`
	Concept     string  `yaml:"concept"`
	Amount      int     `yaml:"amount"`
	DueDate     Date    `yaml:"due_date"`
	Method      *string `yaml:"method"`
	Status      string  `yaml:"status"`
	PaidOn      *Date   `yaml:"paid_on"`
}

type Task struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	AssignedTo  *string   `yaml:"assigned_to"`
	Completed   bool      `yaml:"completed"`
	Created     Timestamp `yaml:"created"`
}

type Subtask struct {
	ID          string    `yaml:"id"`
	TaskID      string    `yaml:"task"`
	Description string    `yaml:"description"`
	AssignedTo  *string   `yaml:"assigned_to"`
	Completed   bool      `yaml:"completed"`
	Created     Timestamp `yaml:"created"`
}

// NormalizeEmail is the key emails are compared and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Participant struct {
	Email  string `yaml:"email"`
	Active bool   `yaml:"active"`
}

// Profile belongs to the participant with the same email.
type Profile struct {
	Email                string `yaml:"email"`
	Name                 string `yaml:"name"`
	LastName             string `yaml:"last_name"`
	Phone                string `yaml:"phone"`
	City                 string `yaml:"city"`
	AcceptsNotifications bool   `yaml:"accepts_notifications"`
	AcceptsWhatsApp      bool   `yaml:"accepts_whatsapp"`
}

// Series parameterises the recurring calendar instances and their staff.
type Series struct {
	Start          Date           `yaml:"start"`
	End            Date           `yaml:"end"`
	CadenceDays    int            `yaml:"cadence_days"`
	Kinds          []string       `yaml:"kinds"`
	Sources        map[string]int `yaml:"sources"`
	StartTime      string         `yaml:"start_time"`
	EndTime        string         `yaml:"end_time"`
	Coordinators   []int          `yaml:"coordinators"`
	CoCoordinators []int          `yaml:"co_coordinators"`
}

// Instance is one generated calendar occurrence. Tick is its position in
// the series, starting at 0.
type Instance struct {
	Tick      int
	Kind      string
	SourceID  int
	Date      Date
	StartTime string
	EndTime   string
	Status    string
}

// Assignment staffs the instance at Tick.
type Assignment struct {
	Tick        int
	Role        string
	VolunteerID int
}
