package model

import "time"

// FormMode is fixed for the lifetime of a session.
type FormMode string

const (
	ModeCreate FormMode = "CREATE"
	ModeUpdate FormMode = "UPDATE"
)

// Valid reports whether m is a known mode.
func (m FormMode) Valid() bool {
	return m == ModeCreate || m == ModeUpdate
}

// ShellState is the visible state of the slide-over panel. A closed shell has
// no session, so CLOSED is only ever reported, never stored.
type ShellState string

const (
	ShellClosed     ShellState = "CLOSED"
	ShellOpen       ShellState = "OPEN"
	ShellSubmitting ShellState = "SUBMITTING"
)

// DeletionState is the confirmable deletion sub-machine nested in OPEN.
type DeletionState string

const (
	DeletionIdle      DeletionState = "IDLE"
	DeletionRequested DeletionState = "REQUESTED"
	DeletionConfirmed DeletionState = "CONFIRMED"
)

// Test run results.
const (
	TestPending = "pending"
	TestSuccess = "success"
	TestFailure = "failure"
)

// TestRun records the last connectivity test of a session.
type TestRun struct {
	Result     string     `json:"result,omitempty"`
	Message    string     `json:"message,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FormSession is the live editable state of one entity instance while its
// shell is open. InitialValues is never written after creation.
type FormSession struct {
	ID            string        `json:"id"`
	Screen        string        `json:"screen"`
	Mode          FormMode      `json:"mode"`
	EntityID      string        `json:"entity_id,omitempty"`
	Owner         string        `json:"owner"`
	InitialValues Values        `json:"initial_values"`
	CurrentValues Values        `json:"current_values"`
	State         ShellState    `json:"state"`
	Deletion      DeletionState `json:"deletion"`
	FieldErrors   []FieldError  `json:"field_errors,omitempty"`
	Test          TestRun       `json:"test"`
	Version       int           `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// Dirty reports whether the working copy differs from the snapshot taken at
// open time.
func (s *FormSession) Dirty() bool {
	return !s.CurrentValues.Equal(s.InitialValues)
}
