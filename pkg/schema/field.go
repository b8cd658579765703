package schema

// FieldKind tags a field descriptor. Leaf kinds store data directly; group
// kinds contain nested subfields; presentational kinds carry no data at all.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindNumber   FieldKind = "number"
	KindCheckbox FieldKind = "checkbox"
	KindSelect   FieldKind = "select"
	KindGroup    FieldKind = "group"
	KindArray    FieldKind = "array"

	// Presentational kinds never store data under their own name
	KindUI   FieldKind = "ui"
	KindRow  FieldKind = "row"
	KindTabs FieldKind = "tabs"
)

// Field describes one entry of a user-collection schema. A field either
// stores data under its own name (leaf) or groups nested subfields.
type Field struct {
	Name      string    `json:"name"`
	Kind      FieldKind `json:"type"`
	SaveToJWT bool      `json:"saveToJWT,omitempty"`
	Fields    []Field   `json:"fields,omitempty"`
}

// Leaf creates a data-storing field descriptor
func Leaf(name string, kind FieldKind, saveToJWT bool) Field {
	return Field{Name: name, Kind: kind, SaveToJWT: saveToJWT}
}

// Group creates a field descriptor containing nested subfields
func Group(name string, children ...Field) Field {
	return Field{Name: name, Kind: KindGroup, Fields: children}
}

// AffectsData reports whether the field directly stores data, as opposed to
// purely structural or presentational fields.
func (f Field) AffectsData() bool {
	if f.Name == "" {
		return false
	}
	switch f.Kind {
	case KindUI, KindRow, KindTabs:
		return false
	}
	return true
}

// HasSubFields reports whether the field contains nested subfields
func (f Field) HasSubFields() bool {
	return len(f.Fields) > 0
}
