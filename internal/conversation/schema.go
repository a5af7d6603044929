package conversation

// Schema types understood by every LLM backend.
const (
	SchemaTypeObject = "object"
	SchemaTypeString = "string"
	SchemaTypeArray  = "array"
)

// SchemaProperty is the subset of JSON Schema the backends can all express.
type SchemaProperty struct {
	Type        string
	Description string
	Enum        []string
	Nullable    bool
	Items       *SchemaProperty
	Properties  map[string]*SchemaProperty
	Required    []string
	// Order fixes property order for providers that care about it.
	Order []string
}

// OutputSchema names a structured response the model must produce.
type OutputSchema struct {
	Name        string
	Description string
	Root        *SchemaProperty
}

// JSONSchema renders the property as a JSON Schema document.
func (p *SchemaProperty) JSONSchema() map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, 0, len(p.Enum))
		for _, v := range p.Enum {
			enum = append(enum, v)
		}
		out["enum"] = enum
	}
	if p.Items != nil {
		out["items"] = p.Items.JSONSchema()
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, prop := range p.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
	}
	if len(p.Required) > 0 {
		req := make([]any, 0, len(p.Required))
		for _, v := range p.Required {
			req = append(req, v)
		}
		out["required"] = req
	}
	return out
}

const classificationToolName = "process_appointment_request"

var extractedInfoFields = []string{
	"customer_name",
	"location_preference",
	"barber_selection",
	"service_preference",
	"date_preference",
	"time_preference",
}

// classificationSchema constrains intent and next_state to the known enums and
// extracted_info to the six named optional fields.
func classificationSchema() *OutputSchema {
	intents := make([]string, 0, len(AllIntents))
	for _, i := range AllIntents {
		intents = append(intents, string(i))
	}
	states := make([]string, 0, len(AllStates))
	for _, s := range AllStates {
		states = append(states, string(s))
	}

	extracted := &SchemaProperty{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*SchemaProperty, len(extractedInfoFields)),
		Order:      extractedInfoFields,
	}
	for _, field := range extractedInfoFields {
		extracted.Properties[field] = &SchemaProperty{Type: SchemaTypeString, Nullable: true}
	}

	return &OutputSchema{
		Name:        classificationToolName,
		Description: "Process appointment request with context awareness",
		Root: &SchemaProperty{
			Type: SchemaTypeObject,
			Properties: map[string]*SchemaProperty{
				"intent":         {Type: SchemaTypeString, Enum: intents},
				"reply":          {Type: SchemaTypeString},
				"next_state":     {Type: SchemaTypeString, Enum: states, Nullable: true},
				"extracted_info": extracted,
			},
			Required: []string{"intent", "reply"},
			Order:    []string{"intent", "reply", "next_state", "extracted_info"},
		},
	}
}
