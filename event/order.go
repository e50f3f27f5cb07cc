package event

import "github.com/openepcis/epcisconv/epcis"

// Canonical field orderings per event kind. The 2.0 tables follow the EPCIS
// 2.0 XSD sequences; the 1.2 tables list the flat order before wrapper
// nesting is applied.

var base20 = []string{
	"eventTime",
	"recordTime",
	"eventTimeZoneOffset",
	"eventID",
	"errorDeclaration",
	"certificationInfo",
}

var order20 = map[string][]string{
	epcis.ObjectEvent: append(append([]string{}, base20...),
		"epcList", "action", "bizStep", "disposition", "persistentDisposition",
		"readPoint", "bizLocation", "bizTransactionList", "quantityList",
		"sourceList", "destinationList", "sensorElementList", "ilmd",
	),
	epcis.AggregationEvent: append(append([]string{}, base20...),
		"parentID", "childEPCs", "action", "bizStep", "disposition",
		"persistentDisposition", "readPoint", "bizLocation",
		"bizTransactionList", "childQuantityList", "sourceList",
		"destinationList", "sensorElementList",
	),
	epcis.TransactionEvent: append(append([]string{}, base20...),
		"bizTransactionList", "parentID", "epcList", "action", "bizStep",
		"disposition", "persistentDisposition", "readPoint", "bizLocation",
		"quantityList", "sourceList", "destinationList", "sensorElementList",
	),
	epcis.TransformationEvent: append(append([]string{}, base20...),
		"inputEPCList", "inputQuantityList", "outputEPCList",
		"outputQuantityList", "transformationID", "bizStep", "disposition",
		"persistentDisposition", "readPoint", "bizLocation",
		"bizTransactionList", "sourceList", "destinationList", "ilmd",
		"sensorElementList",
	),
	epcis.AssociationEvent: append(append([]string{}, base20...),
		"parentID", "childEPCs", "childQuantityList", "action", "bizStep",
		"disposition", "readPoint", "bizLocation", "bizTransactionList",
		"sourceList", "destinationList", "sensorElementList",
	),
}

// order12 lists the flat 1.2 order of fields that exist in the 1.2 base
// schema for each kind. Wrapper placement is defined by Wrapper12.
var order12 = map[string][]string{
	epcis.ObjectEvent: {
		"eventTime", "recordTime", "eventTimeZoneOffset",
		"epcList", "action", "bizStep", "disposition",
		"readPoint", "bizLocation", "bizTransactionList",
	},
	epcis.AggregationEvent: {
		"eventTime", "recordTime", "eventTimeZoneOffset",
		"parentID", "childEPCs", "action", "bizStep", "disposition",
		"readPoint", "bizLocation", "bizTransactionList",
	},
	epcis.TransactionEvent: {
		"eventTime", "recordTime", "eventTimeZoneOffset",
		"bizTransactionList", "parentID", "epcList", "action", "bizStep",
		"disposition", "readPoint", "bizLocation",
	},
	epcis.TransformationEvent: {
		"eventTime", "recordTime", "eventTimeZoneOffset",
		"inputEPCList", "inputQuantityList", "outputEPCList",
		"outputQuantityList", "transformationID", "bizStep", "disposition",
		"readPoint", "bizLocation", "bizTransactionList", "sourceList",
		"destinationList", "ilmd",
	},
}

// Order20 returns the canonical 2.0 field order for the event kind.
func Order20(kind string) []string { return order20[kind] }

// Order12 returns the flat 1.2 field order for the event kind. Kinds absent
// from the 1.2 base schema (AssociationEvent) return nil.
func Order12(kind string) []string { return order12[kind] }

// Wrapper12 describes where 2.0-flat fields live in the 1.2 rendition of an
// event kind.
type Wrapper12 struct {
	// Base lists fields carried under baseExtension.
	Base []string
	// Extension lists fields carried under the trailing extension element.
	Extension []string
	// Inner lists fields carried under extension/extension.
	Inner []string
	// RequiredEmpty lists fields the 1.2 schema requires; an empty
	// placeholder element is emitted when the field is absent.
	RequiredEmpty []string
	// EventWrap counts the extension elements wrapping the whole event
	// inside EventList (TransformationEvent: 1, AssociationEvent: 2).
	EventWrap int
}

var wrapper12 = map[string]Wrapper12{
	epcis.ObjectEvent: {
		Base:          []string{"eventID", "errorDeclaration"},
		Extension:     []string{"quantityList", "sourceList", "destinationList", "ilmd"},
		Inner:         []string{"sensorElementList", "persistentDisposition"},
		RequiredEmpty: []string{"epcList"},
	},
	epcis.AggregationEvent: {
		Base:          []string{"eventID", "errorDeclaration"},
		Extension:     []string{"childQuantityList", "sourceList", "destinationList"},
		Inner:         []string{"sensorElementList", "persistentDisposition"},
		RequiredEmpty: []string{"childEPCs"},
	},
	epcis.TransactionEvent: {
		Base:          []string{"eventID", "errorDeclaration"},
		Extension:     []string{"quantityList", "sourceList", "destinationList"},
		Inner:         []string{"sensorElementList", "persistentDisposition"},
		RequiredEmpty: []string{"bizTransactionList", "epcList"},
	},
	epcis.TransformationEvent: {
		Base:      []string{"eventID", "errorDeclaration"},
		Extension: nil, // 1.2 TransformationEvent carries its fields flat
		Inner:     []string{"sensorElementList", "persistentDisposition"},
		EventWrap: 1,
	},
	epcis.AssociationEvent: {
		Base:      []string{"eventID", "errorDeclaration"},
		EventWrap: 2,
	},
}

// WrapperFor returns the 1.2 wrapper policy for the event kind.
func WrapperFor(kind string) Wrapper12 { return wrapper12[kind] }

// listItemName maps a list-valued field to the element name of its items in
// XML. Fields absent from the table are not XML lists.
var listItemName = map[string]string{
	"epcList":            "epc",
	"childEPCs":          "epc",
	"inputEPCList":       "epc",
	"outputEPCList":      "epc",
	"quantityList":       "quantityElement",
	"childQuantityList":  "quantityElement",
	"inputQuantityList":  "quantityElement",
	"outputQuantityList": "quantityElement",
	"bizTransactionList": "bizTransaction",
	"sourceList":         "source",
	"destinationList":    "destination",
	"sensorElementList":  "sensorElement",
	"correctiveEventIDs": "correctiveEventID",
}

// ListItemName returns the XML item element name for a list field, or ""
// when the field is not a known list.
func ListItemName(field string) (string, bool) {
	n, ok := listItemName[field]
	return n, ok
}

// typedPair maps elements of the form <name type="...">value</name> to the
// JSON field carrying the element text.
var typedPair = map[string]string{
	"bizTransaction": "bizTransaction",
	"source":         "source",
	"destination":    "destination",
}

// TypedPairValueField returns the JSON field name that carries the element
// text of a typed-pair element, or "" when name is not a typed pair.
func TypedPairValueField(name string) (string, bool) {
	f, ok := typedPair[name]
	return f, ok
}

// attrCarried marks container elements whose scalar JSON fields ride as XML
// attributes.
var attrCarried = map[string]bool{
	"sensorMetadata": true,
	"sensorReport":   true,
}

// AttrCarried reports whether scalar fields of the named container are
// emitted as XML attributes.
func AttrCarried(name string) bool { return attrCarried[name] }

// repeatedScalar marks elements that repeat directly (without a wrapping
// list element) and therefore map to JSON arrays.
var repeatedScalar = map[string]bool{
	"set":               true,
	"unset":             true,
	"correctiveEventID": true,
	"epc":               true,
	"sensorReport":      true,
	"sensorElement":     true,
	"quantityElement":   true,
	"bizTransaction":    true,
	"source":            true,
	"destination":       true,
}

// RepeatedElement reports whether the named child element may repeat and
// should coalesce into a list.
func RepeatedElement(name string) bool { return repeatedScalar[name] }

// numericField marks known fields whose lexical value is a JSON number.
var numericField = map[string]bool{
	"quantity":  true,
	"value":     true, // sensorReport value
	"minValue":  true,
	"maxValue":  true,
	"meanValue": true,
	"sDev":      true,
	"percRank":  true,
	"percValue": true,
}

// NumericField reports whether the named field carries a JSON number.
func NumericField(name string) bool { return numericField[name] }
