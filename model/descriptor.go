package model

// NavigationTree is the top-level navigation structure returned to the frontend.
type NavigationTree struct {
	Items []NavigationNode `json:"items"`
}

// NavigationNode is a single node in the navigation tree.
type NavigationNode struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Icon     string           `json:"icon"`
	Route    string           `json:"route,omitempty"`
	Children []NavigationNode `json:"children"`
	Badge    *BadgeDescriptor `json:"badge,omitempty"`
}

// BadgeDescriptor describes a count badge on a navigation item.
type BadgeDescriptor struct {
	Count int    `json:"count"`
	Style string `json:"style"`
}

// OptionDescriptor is a resolved option for selects and radio groups.
type OptionDescriptor struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// FormDescriptor is the rendered form body of a shell.
type FormDescriptor struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Sections []SectionDescriptor `json:"sections"`
}

// SectionDescriptor is a rendered group of fields.
type SectionDescriptor struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Collapsible bool              `json:"collapsible"`
	Fields      []FieldDescriptor `json:"fields"`
}

// Field types understood by the frontend renderer.
const (
	FieldText        = "text"
	FieldPassword    = "password"
	FieldNumber      = "number"
	FieldSwitch      = "switch"
	FieldSelect      = "select"
	FieldMultiSelect = "multiselect"
	FieldTextArea    = "textarea"
	FieldRadio       = "radio"
)

// FieldDescriptor is a rendered field. Field is the dotted value path.
type FieldDescriptor struct {
	Field       string                      `json:"field"`
	Label       string                      `json:"label"`
	Type        string                      `json:"type"`
	ReadOnly    bool                        `json:"read_only"`
	Required    bool                        `json:"required"`
	Validation  *ValidationDescriptor       `json:"validation,omitempty"`
	Options     []OptionDescriptor          `json:"options,omitempty"`
	Placeholder string                      `json:"placeholder,omitempty"`
	HelpText    string                      `json:"help_text,omitempty"`
	Value       any                         `json:"value,omitempty"`
	Error       string                      `json:"error,omitempty"`
	DependsOn   []FieldDependencyDescriptor `json:"depends_on,omitempty"`
}

// ValidationDescriptor describes client-side validation rules.
type ValidationDescriptor struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message,omitempty"`
}

// FieldDependencyDescriptor describes a client-side field dependency.
type FieldDependencyDescriptor struct {
	Field     string `json:"field"`
	Condition string `json:"condition"`
	Value     string `json:"value,omitempty"`
}

// ActionDescriptor is an entry of the shell action bar.
type ActionDescriptor struct {
	ID           string                  `json:"id"`
	Label        string                  `json:"label"`
	Style        string                  `json:"style,omitempty"`
	Enabled      bool                    `json:"enabled"`
	Pending      bool                    `json:"pending"`
	Endpoint     string                  `json:"endpoint"`
	Confirmation *ConfirmationDescriptor `json:"confirmation,omitempty"`
}

// ConfirmationDescriptor describes a confirmation dialog.
type ConfirmationDescriptor struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Confirm string `json:"confirm"`
	Cancel  string `json:"cancel,omitempty"`
	Style   string `json:"style,omitempty"`
}

// IndicatorDescriptor is the tri-state test button state.
type IndicatorDescriptor struct {
	State   string `json:"state"`
	Label   string `json:"label"`
	Message string `json:"message,omitempty"`
}

// ShellDescriptor is the full view of an open slide-over panel.
type ShellDescriptor struct {
	SessionID    string                  `json:"session_id"`
	Screen       string                  `json:"screen"`
	Title        string                  `json:"title"`
	Mode         FormMode                `json:"mode"`
	EntityID     string                  `json:"entity_id,omitempty"`
	State        ShellState              `json:"state"`
	Dirty        bool                    `json:"dirty"`
	Discriminant string                  `json:"discriminant,omitempty"`
	Values       Values                  `json:"values"`
	Form         FormDescriptor          `json:"form"`
	Errors       []FieldError            `json:"errors,omitempty"`
	Deletion     DeletionState           `json:"deletion"`
	Confirmation *ConfirmationDescriptor `json:"confirmation,omitempty"`
	Test         *IndicatorDescriptor    `json:"test,omitempty"`
	Actions      []ActionDescriptor      `json:"actions"`
}

// SubmitResponse is returned from submit and delete confirmation.
type SubmitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Submit response statuses.
const (
	SubmitClosed  = "closed"
	SubmitIgnored = "ignored"
)

// ItemsResponse is the list payload of a screen.
type ItemsResponse struct {
	Data ItemsPayload   `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ItemsPayload contains the items of a list response.
type ItemsPayload struct {
	Items      []Values `json:"items"`
	TotalCount int      `json:"total_count"`
}
