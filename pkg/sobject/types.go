// Package sobject models Salesforce object metadata and builds typed
// row schemas for decoding bulk query results.
package sobject

import "fmt"

// Kind is the semantic value kind a wire-format field decodes to.
type Kind int

const (
	// KindAny is an unconstrained value, kept as its raw string form.
	KindAny Kind = iota

	// KindString is a plain string value.
	KindString

	// KindInt is a 64-bit integer value.
	KindInt

	// KindFloat is a 64-bit floating-point value.
	KindFloat

	// KindBool is a boolean value.
	KindBool

	// KindBytes is a base64-encoded binary value.
	KindBytes

	// KindDate is a calendar date (YYYY-MM-DD).
	KindDate

	// KindDateTime is a timestamp with offset.
	KindDateTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// compositeTypes are field types whose values are multi-part records.
// The flat CSV bulk result format cannot represent them, so they are
// always excluded from bulk querying.
var compositeTypes = map[string]bool{
	"address":  true,
	"location": true,
}

// fieldKinds is the fixed table mapping Salesforce field type tags to
// semantic kinds. Kept as data so an unknown tag is a catalog
// configuration error, not a decode-time branch.
var fieldKinds = map[string]Kind{
	"anyType":         KindAny,
	"base64":          KindBytes,
	"boolean":         KindBool,
	"combobox":        KindString,
	"complexvalue":    KindAny,
	"currency":        KindFloat,
	"date":            KindDate,
	"datetime":        KindDateTime,
	"double":          KindFloat,
	"email":           KindString,
	"encryptedstring": KindString,
	"id":              KindString,
	"int":             KindInt,
	"json":            KindAny,
	"long":            KindInt,
	"multipicklist":   KindString,
	"percent":         KindFloat,
	"phone":           KindString,
	"picklist":        KindString,
	"reference":       KindString,
	"time":            KindString,
	"string":          KindString,
	"textarea":        KindString,
	"url":             KindString,
}

// IsComposite reports whether the field type tag names a composite
// (structured) type.
func IsComposite(fieldType string) bool {
	return compositeTypes[fieldType]
}

// KindForType returns the semantic kind for a field type tag. Composite
// tags and tags absent from the type table are errors.
func KindForType(fieldType string) (Kind, error) {
	if IsComposite(fieldType) {
		return 0, fmt.Errorf("composite field type: %s", fieldType)
	}
	kind, ok := fieldKinds[fieldType]
	if !ok {
		return 0, fmt.Errorf("unsupported field type: %s", fieldType)
	}
	return kind, nil
}
