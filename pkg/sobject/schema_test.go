package sobject

import (
	"errors"
	"testing"
	"time"
)

func testObject() *SObject {
	return &SObject{
		Name: "Account",
		Fields: []Field{
			{Name: "Id", Type: "id", Length: 18},
			{Name: "Name", Type: "string", Length: 255},
			{Name: "NumberOfEmployees", Type: "int"},
			{Name: "AnnualRevenue", Type: "currency"},
			{Name: "IsDeleted", Type: "boolean"},
			{Name: "CreatedDate", Type: "datetime"},
			{Name: "LastActivityDate", Type: "date"},
			{Name: "Attachment", Type: "base64"},
			{Name: "Payload", Type: "anyType"},
			{Name: "BillingAddress", Type: "address"},
			{Name: "ShippingLocation", Type: "location"},
		},
	}
}

func TestBuildSchema_OrderFollowsRequest(t *testing.T) {
	fields := []string{"Name", "Id", "IsDeleted"}
	schema, err := BuildSchema(testObject(), fields)
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	if len(schema.Columns) != len(fields) {
		t.Fatalf("columns = %d, want %d", len(schema.Columns), len(fields))
	}
	for i, name := range fields {
		if schema.Columns[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, schema.Columns[i].Name, name)
		}
	}
}

func TestBuildSchema_MaxLenForBoundedStrings(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Name", "NumberOfEmployees"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	if schema.Columns[0].MaxLen != 255 {
		t.Errorf("Name MaxLen = %d, want 255", schema.Columns[0].MaxLen)
	}
	if schema.Columns[1].MaxLen != 0 {
		t.Errorf("NumberOfEmployees MaxLen = %d, want 0", schema.Columns[1].MaxLen)
	}
}

func TestBuildSchema_Failures(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"empty selection", nil},
		{"unknown field", []string{"Id", "Bogus"}},
		{"composite address", []string{"Id", "BillingAddress"}},
		{"composite location", []string{"ShippingLocation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSchema(testObject(), tt.fields)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestBind_CountMismatch(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Id", "Name"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	_, err = schema.Bind([]string{"Id"})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error = %v, want DecodeError", err)
	}
}

func TestBind_UnknownHeaderColumn(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Id", "Name"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	_, err = schema.Bind([]string{"Id", "Surprise"})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error = %v, want DecodeError", err)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Id", "Name"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	decoder, err := schema.Bind([]string{"Id", "Name"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	record, err := decoder.Decode([]string{"001x", "Acme"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if record["Id"] != "001x" || record["Name"] != "Acme" {
		t.Errorf("record = %v", record)
	}
}

func TestDecode_TypedValues(t *testing.T) {
	fields := []string{"NumberOfEmployees", "AnnualRevenue", "IsDeleted", "CreatedDate", "LastActivityDate", "Attachment", "Payload"}
	schema, err := BuildSchema(testObject(), fields)
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	decoder, err := schema.Bind(fields)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	record, err := decoder.Decode([]string{
		"42", "1250000.5", "false", "2023-03-04T18:45:00.000+0000", "2023-03-04", "aGVsbG8=", "raw",
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if v := record["NumberOfEmployees"]; v != int64(42) {
		t.Errorf("NumberOfEmployees = %v (%T), want int64 42", v, v)
	}
	if v := record["AnnualRevenue"]; v != 1250000.5 {
		t.Errorf("AnnualRevenue = %v, want 1250000.5", v)
	}
	if v := record["IsDeleted"]; v != false {
		t.Errorf("IsDeleted = %v, want false", v)
	}
	created, ok := record["CreatedDate"].(time.Time)
	if !ok || !created.Equal(time.Date(2023, 3, 4, 18, 45, 0, 0, time.UTC)) {
		t.Errorf("CreatedDate = %v", record["CreatedDate"])
	}
	activity, ok := record["LastActivityDate"].(time.Time)
	if !ok || activity.Format("2006-01-02") != "2023-03-04" {
		t.Errorf("LastActivityDate = %v", record["LastActivityDate"])
	}
	if v, ok := record["Attachment"].([]byte); !ok || string(v) != "hello" {
		t.Errorf("Attachment = %v", record["Attachment"])
	}
	if v := record["Payload"]; v != "raw" {
		t.Errorf("Payload = %v, want raw string", v)
	}
}

func TestDecode_EmptyCellIsNil(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Id", "NumberOfEmployees"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	decoder, err := schema.Bind([]string{"Id", "NumberOfEmployees"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	record, err := decoder.Decode([]string{"001x", ""})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if value, present := record["NumberOfEmployees"]; !present || value != nil {
		t.Errorf("empty cell = %v (present=%v), want nil and present", value, present)
	}
}

func TestDecode_Failures(t *testing.T) {
	schema, err := BuildSchema(testObject(), []string{"Id", "NumberOfEmployees"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	decoder, err := schema.Bind([]string{"Id", "NumberOfEmployees"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	tests := []struct {
		name string
		row  []string
	}{
		{"column count mismatch", []string{"001x"}},
		{"unparsable integer", []string{"001x", "forty-two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decoder.Decode(tt.row)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("error = %v, want DecodeError", err)
			}
		})
	}
}

func TestDecode_MaxLenViolation(t *testing.T) {
	object := &SObject{
		Name:   "Note",
		Fields: []Field{{Name: "Title", Type: "string", Length: 3}},
	}
	schema, err := BuildSchema(object, []string{"Title"})
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	decoder, err := schema.Bind([]string{"Title"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if _, err := decoder.Decode([]string{"abc"}); err != nil {
		t.Errorf("value at the limit should decode, got %v", err)
	}

	_, err = decoder.Decode([]string{"abcd"})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error = %v, want DecodeError for exceeded length", err)
	}
}

func TestQueryableFieldNames_SkipsComposite(t *testing.T) {
	names := testObject().QueryableFieldNames()
	for _, name := range names {
		if name == "BillingAddress" || name == "ShippingLocation" {
			t.Errorf("composite field %s should be excluded", name)
		}
	}
	if len(names) != 9 {
		t.Errorf("queryable fields = %d, want 9", len(names))
	}
}
