// Package validation provides the two concrete validator capabilities the
// event handler can be wired with: JSON Schema validation of emitted 2.0
// JSON events and a well-formedness check for XML events.
package validation

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sync"

	j "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openepcis/epcisconv/epcis"
)

// eventSchema is the structural core of the EPCIS 2.0 event schema: the
// envelope of every event object. Full CBV-level validation stays with the
// caller via CompileSchema.
const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "eventTime", "eventTimeZoneOffset"],
  "properties": {
    "type": {
      "enum": ["ObjectEvent", "AggregationEvent", "TransactionEvent",
               "TransformationEvent", "AssociationEvent"]
    },
    "eventTime": {"type": "string"},
    "recordTime": {"type": "string"},
    "eventTimeZoneOffset": {
      "type": "string",
      "pattern": "^[+-](0[0-9]|1[0-4]):[0-5][0-9]$"
    },
    "action": {"enum": ["ADD", "OBSERVE", "DELETE"]},
    "epcList": {"type": "array", "items": {"type": "string"}}
  }
}`

// EventValidator validates serialised events: JSON events against a
// compiled JSON Schema, XML events for well-formedness. It is safe for
// concurrent use; the compiled schema is shared.
type EventValidator struct {
	schema *jsonschema.Schema
}

var (
	defaultSchemaOnce sync.Once
	defaultSchema     *jsonschema.Schema
	defaultSchemaErr  error
)

// NewEventValidator returns a validator backed by the embedded event
// schema.
func NewEventValidator() (*EventValidator, error) {
	defaultSchemaOnce.Do(func() {
		defaultSchema, defaultSchemaErr = jsonschema.CompileString("epcis-event.json", eventSchema)
	})
	if defaultSchemaErr != nil {
		return nil, defaultSchemaErr
	}
	return &EventValidator{schema: defaultSchema}, nil
}

// NewEventValidatorWithSchema returns a validator using a caller-compiled
// schema, e.g. the full GS1 EPCIS 2.0 JSON Schema.
func NewEventValidatorWithSchema(s *jsonschema.Schema) *EventValidator {
	return &EventValidator{schema: s}
}

// ValidateEvent implements collector.Validator.
func (v *EventValidator) ValidateEvent(media epcis.MediaType, data []byte) error {
	if media == epcis.MediaXML {
		return validateXML(data)
	}
	var doc any
	if err := j.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("validation: event is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// validateXML checks well-formedness. A full XSD validation is delegated to
// external tooling; no maintained Go XSD 1.1 validator exists.
func validateXML(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("validation: event is not well-formed XML: %w", err)
		}
	}
}
