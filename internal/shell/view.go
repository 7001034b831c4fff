package shell

import (
	"fmt"
	"strings"

	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/model"
)

// Action identifiers of the shell action bar.
const (
	ActionDelete = "delete"
	ActionTest   = "test"
	ActionCancel = "cancel"
	ActionSubmit = "submit"
)

func (e *Engine) view(screen *Screen, s model.FormSession) model.ShellDescriptor {
	sections := screen.Form.Sections(s.CurrentValues)
	form.AttachErrors(sections, s.FieldErrors)

	title := "Add " + screen.Title
	if s.Mode == model.ModeUpdate {
		title = "Edit " + screen.Title
	}

	v := model.ShellDescriptor{
		SessionID: s.ID,
		Screen:    screen.ID,
		Title:     title,
		Mode:      s.Mode,
		EntityID:  s.EntityID,
		State:     s.State,
		Dirty:     s.Dirty(),
		Values:    s.CurrentValues,
		Form: model.FormDescriptor{
			ID:       screen.ID,
			Title:    title,
			Sections: sections,
		},
		Errors:   s.FieldErrors,
		Deletion: s.Deletion,
		Actions:  e.actions(screen, s),
	}
	if screen.Discriminant != "" {
		v.Discriminant = s.CurrentValues.String(screen.Discriminant)
	}
	if s.Deletion != model.DeletionIdle {
		v.Confirmation = deleteConfirmation(screen)
	}
	if screen.Binding.CanTest() {
		run := s.Test
		if run.Result == model.TestPending && !e.testRunning(run) {
			run = model.TestRun{}
		}
		ind := Indicator(run, e.now(), e.indicator)
		v.Test = &ind
	}
	return v
}

func (e *Engine) actions(screen *Screen, s model.FormSession) []model.ActionDescriptor {
	base := "/ui/sessions/" + s.ID
	open := s.State == model.ShellOpen
	var actions []model.ActionDescriptor

	if s.Mode == model.ModeUpdate && screen.CanDelete() {
		actions = append(actions, model.ActionDescriptor{
			ID:           ActionDelete,
			Label:        "Remove",
			Style:        "danger",
			Enabled:      open && s.Deletion == model.DeletionIdle,
			Pending:      s.Deletion == model.DeletionConfirmed,
			Endpoint:     base + "/delete:request",
			Confirmation: deleteConfirmation(screen),
		})
	}
	if screen.Binding.CanTest() {
		actions = append(actions, model.ActionDescriptor{
			ID:       ActionTest,
			Label:    "Test",
			Style:    "secondary",
			Enabled:  !(screen.TestNeedsEntity && s.Mode == model.ModeCreate) && !e.testRunning(s.Test),
			Pending:  e.testRunning(s.Test),
			Endpoint: base + "/test",
		})
	}

	submit := "Create"
	if s.Mode == model.ModeUpdate {
		submit = "Save"
	}
	return append(actions,
		model.ActionDescriptor{
			ID:       ActionCancel,
			Label:    "Cancel",
			Style:    "secondary",
			Enabled:  true,
			Endpoint: base + "/cancel",
		},
		model.ActionDescriptor{
			ID:       ActionSubmit,
			Label:    submit,
			Style:    "primary",
			Enabled:  open,
			Pending:  s.State == model.ShellSubmitting,
			Endpoint: base + "/submit",
		},
	)
}

func deleteConfirmation(screen *Screen) *model.ConfirmationDescriptor {
	return &model.ConfirmationDescriptor{
		Title:   "Remove " + screen.EntityName,
		Message: fmt.Sprintf("Are you sure you want to remove this %s? This action cannot be undone.", strings.ToLower(screen.EntityName)),
		Confirm: "Remove",
		Cancel:  "Cancel",
		Style:   "danger",
	}
}
