package domain

import "time"

// ReferenceType names the kind of object a Reference points to.
type ReferenceType string

const (
	ReferenceItem    ReferenceType = "item"
	ReferenceComment ReferenceType = "comment"
)

// Reference addresses an object in the record store.
type Reference struct {
	Type ReferenceType
	ID   int64
}

// ItemReference builds a reference to a record.
func ItemReference(id int64) Reference {
	return Reference{Type: ReferenceItem, ID: id}
}

// DestinationRecord is an item in the record store tagged with a source id.
type DestinationRecord struct {
	ID           int64
	ExternalID   string
	Title        string
	Link         string
	LastModified time.Time
	Fields       []FieldValue
	Tags         []string
}

// FieldValue sets one field of a record. Value is a string for text fields and an
// int64 for reference, contact and image fields.
type FieldValue struct {
	FieldID int64
	Value   any
}

// RecordWrite is the payload of a create or update call.
type RecordWrite struct {
	ExternalID string
	Fields     []FieldValue
	Tags       []string
	Silent     bool
}

// DestinationContact is a person in the record store's contact directory.
type DestinationContact struct {
	ProfileID int64
	UserID    int64
	Name      string
	Email     string
}

// DestinationComment is a comment already posted on a record.
type DestinationComment struct {
	ID    int64
	Value string
}

// ContactField selects the attribute a directory search matches on.
type ContactField string

const (
	ContactFieldMail ContactField = "mail"
	ContactFieldName ContactField = "name"
)
