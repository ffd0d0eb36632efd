// Package fields supplies the user-field schema: the ordered list of field
// names the persistence layer records and audits. The schema comes from
// configuration, not code, so the set of task fields can change without a
// rebuild.
package fields

// Type classifies a field's value for the form layer. The persistence layer
// only ever sees the stringified value.
type Type string

const (
	Text Type = "text"
	Date Type = "date"
	Enum Type = "enum"
)

// Field describes one user-editable task attribute.
type Field struct {
	Name     string   `mapstructure:"name" json:"name"`
	Label    string   `mapstructure:"label" json:"label"`
	Type     Type     `mapstructure:"type" json:"type"`
	Required bool     `mapstructure:"required" json:"required"`
	Options  []string `mapstructure:"options,omitempty" json:"options,omitempty"`
}

// Provider supplies the current field schema. Implementations must be safe
// for concurrent use; callers re-ask on every operation rather than caching
// the list, so schema changes take effect without restart.
type Provider interface {
	// Fields returns the declared fields in order.
	Fields() []Field
	// Names returns just the field names in order.
	Names() []string
}

// Defaults returns the built-in schema used when configuration declares none.
func Defaults() []Field {
	return []Field{
		{Name: "text", Label: "Task", Type: Text, Required: true},
		{Name: "due_date", Label: "Due date", Type: Date},
		{Name: "priority", Label: "Priority", Type: Text},
		{Name: "notes", Label: "Notes", Type: Text},
		{Name: "directory", Label: "Directory", Type: Text},
		{Name: "create_date", Label: "Create date", Type: Date},
	}
}

// Static is a fixed-schema Provider, used by tests and as the fallback when
// no config file is present.
type Static struct {
	fields []Field
}

// NewStatic returns a Provider that always serves the given fields.
func NewStatic(fields []Field) *Static {
	return &Static{fields: fields}
}

// Fields implements Provider.
func (s *Static) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names implements Provider.
func (s *Static) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}
