package sobject

// PicklistEntry is one allowed value of a picklist field.
type PicklistEntry struct {
	Active bool   `json:"active"`
	Label  string `json:"label"`
	Value  string `json:"value"`
}

// Field is one entry of an object's field catalog, as reported by the
// describe endpoint. Consumed read-only.
type Field struct {
	Aggregatable   bool            `json:"aggregatable"`
	AutoNumber     bool            `json:"autoNumber"`
	ByteLength     int             `json:"byteLength"`
	Calculated     bool            `json:"calculated"`
	Createable     bool            `json:"createable"`
	Custom         bool            `json:"custom"`
	Digits         int             `json:"digits"`
	ExternalID     bool            `json:"externalId"`
	Filterable     bool            `json:"filterable"`
	Groupable      bool            `json:"groupable"`
	Label          string          `json:"label"`
	Length         int             `json:"length"`
	Name           string          `json:"name"`
	Nillable       bool            `json:"nillable"`
	PicklistValues []PicklistEntry `json:"picklistValues"`
	Precision      int             `json:"precision"`
	Scale          int             `json:"scale"`
	SoapType       string          `json:"soapType"`
	Sortable       bool            `json:"sortable"`
	Type           string          `json:"type"`
	Unique         bool            `json:"unique"`
	Updateable     bool            `json:"updateable"`
}

// SObject is the full metadata of one Salesforce object.
type SObject struct {
	Custom        bool    `json:"custom"`
	CustomSetting bool    `json:"customSetting"`
	Fields        []Field `json:"fields"`
	KeyPrefix     string  `json:"keyPrefix"`
	Label         string  `json:"label"`
	LabelPlural   string  `json:"labelPlural"`
	Name          string  `json:"name"`
	Queryable     bool    `json:"queryable"`
	Retrieveable  bool    `json:"retrieveable"`
	Searchable    bool    `json:"searchable"`
	Triggerable   bool    `json:"triggerable"`
	Updateable    bool    `json:"updateable"`
}

// Field returns the catalog entry with the given name, or nil.
func (o *SObject) Field(name string) *Field {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			return &o.Fields[i]
		}
	}
	return nil
}

// QueryableFieldNames returns the names of all fields eligible for bulk
// querying, in catalog order. Composite fields are skipped.
func (o *SObject) QueryableFieldNames() []string {
	names := make([]string, 0, len(o.Fields))
	for _, field := range o.Fields {
		if IsComposite(field.Type) {
			continue
		}
		names = append(names, field.Name)
	}
	return names
}

// SObjectBasic is the summary form returned by the global describe.
type SObjectBasic struct {
	Custom        bool   `json:"custom"`
	CustomSetting bool   `json:"customSetting"`
	KeyPrefix     string `json:"keyPrefix"`
	Label         string `json:"label"`
	LabelPlural   string `json:"labelPlural"`
	Name          string `json:"name"`
	Queryable     bool   `json:"queryable"`
	Retrieveable  bool   `json:"retrieveable"`
	Searchable    bool   `json:"searchable"`
	Triggerable   bool   `json:"triggerable"`
	Updateable    bool   `json:"updateable"`
}

// SObjects is the global describe response.
type SObjects struct {
	Encoding     string         `json:"encoding"`
	MaxBatchSize int            `json:"maxBatchSize"`
	SObjects     []SObjectBasic `json:"sobjects"`
}
