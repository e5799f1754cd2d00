package sobject

import "testing"

func TestKindForType(t *testing.T) {
	tests := []struct {
		fieldType string
		kind      Kind
	}{
		{"id", KindString},
		{"string", KindString},
		{"textarea", KindString},
		{"picklist", KindString},
		{"multipicklist", KindString},
		{"email", KindString},
		{"phone", KindString},
		{"url", KindString},
		{"time", KindString},
		{"encryptedstring", KindString},
		{"combobox", KindString},
		{"reference", KindString},
		{"int", KindInt},
		{"long", KindInt},
		{"double", KindFloat},
		{"currency", KindFloat},
		{"percent", KindFloat},
		{"boolean", KindBool},
		{"base64", KindBytes},
		{"date", KindDate},
		{"datetime", KindDateTime},
		{"anyType", KindAny},
		{"complexvalue", KindAny},
		{"json", KindAny},
	}

	for _, tt := range tests {
		t.Run(tt.fieldType, func(t *testing.T) {
			kind, err := KindForType(tt.fieldType)
			if err != nil {
				t.Fatalf("KindForType(%q): %v", tt.fieldType, err)
			}
			if kind != tt.kind {
				t.Errorf("kind = %v, want %v", kind, tt.kind)
			}
		})
	}
}

func TestKindForType_Composite(t *testing.T) {
	for _, fieldType := range []string{"address", "location"} {
		if !IsComposite(fieldType) {
			t.Errorf("IsComposite(%q) = false, want true", fieldType)
		}
		if _, err := KindForType(fieldType); err == nil {
			t.Errorf("KindForType(%q) should fail", fieldType)
		}
	}
}

func TestKindForType_Unknown(t *testing.T) {
	if _, err := KindForType("hologram"); err == nil {
		t.Error("unknown type tag should be a configuration error")
	}
}

func TestKindString(t *testing.T) {
	if KindDateTime.String() != "datetime" {
		t.Errorf("KindDateTime.String() = %q", KindDateTime.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unknown kind String() = %q", Kind(99).String())
	}
}
