// Package xmlconv implements the XML side of the converter: a streaming
// pull reader that yields one event bag at a time, a schema-ordered writer
// for the 2.0 and 1.2 profiles, and the 1.2↔2.0 version rewriter.
package xmlconv

import (
	"encoding/xml"
	"io"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

// Reader stream-parses an EPCIS XML document. ReadDocument consumes the
// envelope up to the start of EventList; NextEvent then yields event bags
// in input order until io.EOF. Events are returned in the structural shape
// of the input document; 1.2 wrapper elements survive as ordinary fields
// until the version rewriter unwraps them.
type Reader struct {
	dec     *xml.Decoder
	doc     *event.Document
	pending *event.Event // single-event documents
	done    bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// ReadDocument parses the document element, collects the namespace map and
// envelope attributes, and positions the reader at the first EventList
// child. For a document whose root is a bare event the envelope is
// synthesised and SingleEvent is set.
func (r *Reader) ReadDocument() (*event.Document, error) {
	start, err := r.nextStart()
	if err != nil {
		return nil, err
	}

	doc := event.NewDocument("2.0")
	doc.Namespaces.Add(epcis.EPCISPrefix, epcis.XMLNamespace)

	if epcis.IsEventKind(start.Name.Local) {
		doc.SingleEvent = true
		r.doc = doc
		ev, err := r.parseEvent(*start)
		if err != nil {
			return nil, err
		}
		doc.Namespaces.Freeze()
		r.pending = ev
		return doc, nil
	}

	if start.Name.Local != epcis.EPCISDocument {
		return nil, &ParseError{Detail: "root element is not EPCISDocument or an EPCIS event", Name: start.Name.Local}
	}

	for _, a := range start.Attr {
		switch {
		case a.Name.Space == "xmlns":
			doc.Namespaces.Add(a.Name.Local, a.Value)
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			// default namespace; nothing to alias
		case a.Name.Local == epcis.SchemaVersionAttr:
			doc.SchemaVersion = a.Value
		case a.Name.Local == epcis.CreationDateAttr:
			doc.CreationDate = a.Value
		}
	}
	r.doc = doc

	// Walk to EventList, skipping the EPCISHeader subtree when present.
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err == io.EOF {
				r.done = true
				doc.Namespaces.Freeze()
				return doc, nil
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case epcis.EPCISBody:
				// descend
			case epcis.EventListElem:
				doc.Namespaces.Freeze()
				return doc, nil
			default:
				if err := r.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == epcis.EPCISDocument {
				r.done = true
				doc.Namespaces.Freeze()
				return doc, nil
			}
		}
	}
}

// NextEvent returns the next event bag, or io.EOF after the last one.
// EventList-level extension wrappers (1.2 TransformationEvent and
// AssociationEvent framing) are entered transparently.
func (r *Reader) NextEvent() (*event.Event, error) {
	if r.pending != nil {
		ev := r.pending
		r.pending = nil
		r.done = true
		return ev, nil
	}
	if r.done {
		return nil, io.EOF
	}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err == io.EOF {
				r.done = true
				return nil, io.EOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if epcis.IsEventKind(t.Name.Local) {
				return r.parseEvent(t)
			}
			if t.Name.Local == epcis.ExtensionElem {
				continue // unwrap EventList-level extension framing
			}
			if err := r.dec.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			switch t.Name.Local {
			case epcis.EventListElem, epcis.EPCISDocument:
				r.done = true
				return nil, io.EOF
			}
		}
	}
}

// nextStart skips prolog tokens up to the first start element.
func (r *Reader) nextStart() (*xml.StartElement, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, err
		}
		if t, ok := tok.(xml.StartElement); ok {
			return &t, nil
		}
	}
}

// parseEvent drains one event element into a canonical bag.
func (r *Reader) parseEvent(start xml.StartElement) (*event.Event, error) {
	raw, err := r.parseRaw(start)
	if err != nil {
		return nil, err
	}
	node := canonicalize(raw)
	ev := &event.Event{Kind: start.Name.Local, Fields: node.Bag}
	event.CanonicalizeTimes(ev)
	return ev, nil
}

// ParseError reports a structural problem in the input XML.
type ParseError struct {
	Detail string
	Name   string
}

func (e *ParseError) Error() string {
	if e.Name != "" {
		return "xmlconv: " + e.Detail + ": " + e.Name
	}
	return "xmlconv: " + e.Detail
}
