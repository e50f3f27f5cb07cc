// Package epcis holds the wire-level vocabulary shared by every converter
// stage: media types, schema versions, namespace URIs and the names of the
// standard EPCIS event kinds.
package epcis

// MediaType identifies one of the two supported wire representations.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaXML
	MediaJSONLD
)

func (m MediaType) String() string {
	switch m {
	case MediaXML:
		return "application/xml"
	case MediaJSONLD:
		return "application/ld+json"
	default:
		return "unknown"
	}
}

// Version identifies an EPCIS schema version.
type Version int

const (
	VersionUnknown Version = iota
	Version1_2
	Version2_0
)

func (v Version) String() string {
	switch v {
	case Version1_2:
		return "1.2"
	case Version2_0:
		return "2.0"
	default:
		return "unknown"
	}
}

// Wire constants.
const (
	SchemaVersionAttr = "schemaVersion"
	CreationDateAttr  = "creationDate"

	// XMLNamespace is the namespace of the epcis:EPCISDocument root element.
	// Both 1.2 and 2.0 use the same URN.
	XMLNamespace = "urn:epcglobal:epcis:xsd:1"

	// EPCISPrefix is the conventional prefix bound to XMLNamespace.
	EPCISPrefix = "epcis"

	// ContextURL is the EPCIS 2.0 JSON-LD context document.
	ContextURL = "https://ref.gs1.org/standards/epcis/epcis-context.jsonld"

	// XSINamespace appears on 1.2 documents for schemaLocation attributes.
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

// Document element local names.
const (
	EPCISDocument = "EPCISDocument"
	EPCISBody     = "EPCISBody"
	EventListElem = "EventList"
	ExtensionElem = "extension"
	BaseExtension = "baseExtension"
)

// Event kinds defined by EPCIS 2.0. AssociationEvent exists only in 2.0.
const (
	ObjectEvent         = "ObjectEvent"
	AggregationEvent    = "AggregationEvent"
	TransactionEvent    = "TransactionEvent"
	TransformationEvent = "TransformationEvent"
	AssociationEvent    = "AssociationEvent"
)

// EventKinds lists the event element names in a stable order.
var EventKinds = []string{
	ObjectEvent,
	AggregationEvent,
	TransactionEvent,
	TransformationEvent,
	AssociationEvent,
}

// IsEventKind reports whether name is one of the standard event element names.
func IsEventKind(name string) bool {
	switch name {
	case ObjectEvent, AggregationEvent, TransactionEvent, TransformationEvent, AssociationEvent:
		return true
	}
	return false
}
