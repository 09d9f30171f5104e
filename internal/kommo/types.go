package kommo

import "fmt"

// Entity type codes used by the salesbot API.
const (
	EntityTypeContact = "1"
	EntityTypeLead    = "2"
)

// EntityTypeCode converts an entity name ("contact" or "lead", singular or
// plural) to its salesbot API code.
func EntityTypeCode(name string) (string, error) {
	switch name {
	case "contact", "contacts":
		return EntityTypeContact, nil
	case "lead", "leads":
		return EntityTypeLead, nil
	default:
		return "", fmt.Errorf("invalid entity name %q: must be contact or lead", name)
	}
}

// FieldValue is a single value of a custom field.
type FieldValue struct {
	Value any `json:"value"`
}

// CustomFieldUpdate sets the values of one custom field on an entity.
type CustomFieldUpdate struct {
	FieldID   int64        `json:"field_id"`
	FieldName string       `json:"field_name,omitempty"`
	FieldCode string       `json:"field_code,omitempty"`
	FieldType string       `json:"field_type,omitempty"`
	Values    []FieldValue `json:"values"`
}

// TextareaField builds a single-value textarea field update. The outbound
// message field on leads is a textarea, so this is the common case.
func TextareaField(fieldID int64, text string) CustomFieldUpdate {
	return CustomFieldUpdate{
		FieldID:   fieldID,
		FieldType: "textarea",
		Values:    []FieldValue{{Value: text}},
	}
}

// SalesbotRequest launches one bot against one entity.
type SalesbotRequest struct {
	BotID      int64  `json:"bot_id"`
	EntityID   int64  `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// Account is the CRM account summary.
type Account struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// Pipeline is a lead pipeline.
type Pipeline struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	IsMain bool   `json:"is_main"`
}

// CustomFieldDef describes a custom field configured on an entity type.
type CustomFieldDef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Code string `json:"code"`
}

type pipelinesResponse struct {
	Embedded struct {
		Pipelines []Pipeline `json:"pipelines"`
	} `json:"_embedded"`
}

type customFieldsResponse struct {
	Embedded struct {
		CustomFields []CustomFieldDef `json:"custom_fields"`
	} `json:"_embedded"`
}
