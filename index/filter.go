package index

import "slices"

// Field names the record attributes a filter may reference.
type Field string

// Filterable record fields.
const (
	FieldDataset Field = "datasetId"
	FieldClass   Field = "className"
	FieldImage   Field = "imageId"
)

// Operator is the comparison applied by a condition.
type Operator int

// Supported comparison operators.
const (
	OpEqual Operator = iota
	OpNotEqual
	OpIn
)

// Condition compares one record field against one or more values.
type Condition struct {
	Field    Field
	Operator Operator
	Values   []string
}

// Filter is a conjunction of conditions over record fields.
// A nil filter matches every record.
type Filter struct {
	Conditions []Condition
}

// Eq creates a filter requiring field == value.
func Eq(field Field, value string) *Filter {
	return &Filter{Conditions: []Condition{{Field: field, Operator: OpEqual, Values: []string{value}}}}
}

// NotEq creates a filter requiring field != value.
func NotEq(field Field, value string) *Filter {
	return &Filter{Conditions: []Condition{{Field: field, Operator: OpNotEqual, Values: []string{value}}}}
}

// In creates a filter requiring the field value to be one of values.
func In(field Field, values ...string) *Filter {
	return &Filter{Conditions: []Condition{{Field: field, Operator: OpIn, Values: values}}}
}

// And appends the conditions of other, returning the receiver for chaining.
// A nil other is a no-op.
func (f *Filter) And(other *Filter) *Filter {
	if other != nil {
		f.Conditions = append(f.Conditions, other.Conditions...)
	}
	return f
}

// Matches reports whether the record satisfies every condition.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Conditions {
		v := fieldValue(r, c.Field)
		switch c.Operator {
		case OpEqual:
			if len(c.Values) != 1 || v != c.Values[0] {
				return false
			}
		case OpNotEqual:
			if len(c.Values) != 1 || v == c.Values[0] {
				return false
			}
		case OpIn:
			if !slices.Contains(c.Values, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func fieldValue(r *Record, field Field) string {
	switch field {
	case FieldDataset:
		return r.DatasetID
	case FieldClass:
		return r.ClassName
	case FieldImage:
		return r.ImageID
	default:
		return ""
	}
}
