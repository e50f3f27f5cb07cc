// Package event models an EPCIS event as an ordered bag of named fields,
// without a per-field object hierarchy. The bag preserves user-defined
// fields verbatim, which is what lets the converters round-trip documents
// they have no prior schema knowledge of.
package event

// Kind discriminates Node variants.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
	KindBag
)

// Node is a tagged value: a scalar, an ordered list, or a nested bag.
// Scalars keep their lexical form in Text; numbers are never reparsed, so
// values like "0.30" survive a round trip unchanged.
type Node struct {
	Kind Kind
	Text string // lexical form for String and Number
	Bool bool
	List []Node
	Bag  []Field
}

// Field is one named entry of a bag. Names use the JSON-LD vocabulary;
// foreign-namespace fields carry a "prefix:local" name. Two reserved name
// shapes exist for XML fidelity: "@name" marks an attribute-carried scalar
// and "#text" marks element character data alongside attributes.
type Field struct {
	Name  string
	Value Node
}

// String returns a string scalar node.
func String(s string) Node { return Node{Kind: KindString, Text: s} }

// Number returns a number node preserving the lexical form.
func Number(text string) Node { return Node{Kind: KindNumber, Text: text} }

// Bool returns a boolean node.
func Bool(b bool) Node { return Node{Kind: KindBool, Bool: b} }

// List returns a list node.
func List(items ...Node) Node { return Node{Kind: KindList, List: items} }

// Bag returns a bag node.
func Bag(fields ...Field) Node { return Node{Kind: KindBag, Bag: fields} }

// Event is one EPCIS event: its kind (ObjectEvent, AggregationEvent, ...)
// and its fields in the order they will be emitted.
type Event struct {
	Kind   string
	Fields []Field
}

// Get returns the first field with the given name.
func (e *Event) Get(name string) (Node, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Node{}, false
}

// Remove deletes every field with the given name and returns the first
// removed value, if any.
func (e *Event) Remove(name string) (Node, bool) {
	var out []Field
	var got Node
	found := false
	for _, f := range e.Fields {
		if f.Name == name {
			if !found {
				got = f.Value
				found = true
			}
			continue
		}
		out = append(out, f)
	}
	e.Fields = out
	return got, found
}

// Mapper is the event-mapping hook: it receives each fully parsed event and
// returns a possibly modified one. Implementations must not retain the
// event and must be pure with respect to other events.
type Mapper func(*Event) (*Event, error)

// Document is the envelope shared by both representations: schema version,
// creation time and the frozen namespace map. SingleEvent marks inputs
// whose root is a bare event rather than an EPCISDocument.
type Document struct {
	SchemaVersion string
	CreationDate  string
	Namespaces    *NamespaceMap
	SingleEvent   bool
}

// NewDocument returns an envelope for the given schema version with an
// empty namespace map.
func NewDocument(version string) *Document {
	return &Document{SchemaVersion: version, Namespaces: NewNamespaceMap()}
}

// IsKnownField reports whether name is a known EPCIS field of the given
// event kind (any version). Unknown fields are user extensions and keep
// their input order after all known fields.
func IsKnownField(kind, name string) bool {
	for _, n := range Order20(kind) {
		if n == name {
			return true
		}
	}
	return false
}

// Reorder sorts known fields into the canonical 2.0 order for the event
// kind, keeping unknown fields after them in their original relative order.
func Reorder(e *Event) {
	order := Order20(e.Kind)
	rank := make(map[string]int, len(order))
	for i, n := range order {
		rank[n] = i
	}
	known := make([]Field, 0, len(e.Fields))
	var unknown []Field
	for _, f := range e.Fields {
		if _, ok := rank[f.Name]; ok {
			known = append(known, f)
		} else {
			unknown = append(unknown, f)
		}
	}
	// Insertion sort: stable and the field lists are small.
	for i := 1; i < len(known); i++ {
		for j := i; j > 0 && rank[known[j].Name] < rank[known[j-1].Name]; j-- {
			known[j], known[j-1] = known[j-1], known[j]
		}
	}
	e.Fields = append(known, unknown...)
}

// Only2_0Field reports whether name has no 1.2 home outside deep extension
// wrappers.
func Only2_0Field(name string) bool {
	switch name {
	case "persistentDisposition", "sensorElementList", "certificationInfo":
		return true
	}
	return false
}
