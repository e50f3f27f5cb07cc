// Package jsonconv implements the JSON-LD side of the converter: a
// streaming reader that yields one event bag at a time from
// epcisBody.eventList, and a schema-ordered JSON-LD writer.
package jsonconv

import (
	"fmt"
	"io"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
	"github.com/openepcis/epcisconv/internal/token"
)

// Reader stream-parses an EPCIS JSON-LD document.
type Reader struct {
	src     token.Source
	doc     *event.Document
	inList  bool
	pending *event.Event
	done    bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: token.NewReader(r)}
}

// ReadDocument parses the envelope: @context into the namespace map,
// schemaVersion, creationDate, and positions the reader inside
// epcisBody.eventList. A top-level object that is itself an event yields a
// SingleEvent document.
func (r *Reader) ReadDocument() (*event.Document, error) {
	tok, err := r.src.NextToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.KindBeginObject {
		return nil, fmt.Errorf("jsonconv: document is not a JSON object")
	}

	doc := event.NewDocument("2.0")
	doc.Namespaces.Add(epcis.EPCISPrefix, epcis.XMLNamespace)
	r.doc = doc

	kind := ""
	var extra []event.Field
	for {
		tok, err := r.src.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.KindEndObject:
			// No epcisBody: either a bare event or an empty document.
			doc.Namespaces.Freeze()
			if kind != "" {
				doc.SingleEvent = true
				ev := &event.Event{Kind: kind, Fields: extra}
				event.CanonicalizeTimes(ev)
				r.pending = ev
			}
			r.done = true
			return doc, nil
		case token.KindKey:
			switch tok.String {
			case "@context":
				node, err := token.ReadNode(r.src)
				if err != nil {
					return nil, err
				}
				collectContext(doc.Namespaces, node)
			case "schemaVersion":
				v, err := scalar(r.src)
				if err != nil {
					return nil, err
				}
				doc.SchemaVersion = v
			case "creationDate":
				v, err := scalar(r.src)
				if err != nil {
					return nil, err
				}
				doc.CreationDate = v
			case "type":
				v, err := scalar(r.src)
				if err != nil {
					return nil, err
				}
				if epcis.IsEventKind(v) {
					kind = v
				}
			case "epcisHeader":
				if err := token.SkipValue(r.src); err != nil {
					return nil, err
				}
			case "epcisBody":
				if err := r.enterEventList(); err != nil {
					return nil, err
				}
				doc.Namespaces.Freeze()
				return doc, nil
			default:
				node, err := token.ReadNode(r.src)
				if err != nil {
					return nil, err
				}
				extra = append(extra, event.Field{Name: tok.String, Value: node})
			}
		default:
			return nil, fmt.Errorf("jsonconv: malformed document envelope")
		}
	}
}

func (r *Reader) enterEventList() error {
	tok, err := r.src.NextToken()
	if err != nil {
		return err
	}
	if tok.Kind != token.KindBeginObject {
		return fmt.Errorf("jsonconv: epcisBody is not an object")
	}
	for {
		tok, err := r.src.NextToken()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.KindEndObject:
			// Body without an eventList; treat as empty.
			r.done = true
			return nil
		case token.KindKey:
			if tok.String == "eventList" {
				tok, err := r.src.NextToken()
				if err != nil {
					return err
				}
				if tok.Kind != token.KindBeginArray {
					return fmt.Errorf("jsonconv: eventList is not an array")
				}
				r.inList = true
				return nil
			}
			if err := token.SkipValue(r.src); err != nil {
				return err
			}
		default:
			return fmt.Errorf("jsonconv: malformed epcisBody")
		}
	}
}

// NextEvent returns the next event bag in input order, or io.EOF.
func (r *Reader) NextEvent() (*event.Event, error) {
	if r.pending != nil {
		ev := r.pending
		r.pending = nil
		return ev, nil
	}
	if r.done || !r.inList {
		return nil, io.EOF
	}
	tok, err := r.src.NextToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.KindEndArray {
		r.done = true
		return nil, io.EOF
	}
	node, err := token.ReadNodeFrom(r.src, tok)
	if err != nil {
		return nil, err
	}
	if node.Kind != event.KindBag {
		return nil, fmt.Errorf("jsonconv: eventList entry is not an object")
	}
	ev := &event.Event{}
	for _, f := range node.Bag {
		if f.Name == "type" && f.Value.Kind == event.KindString {
			ev.Kind = f.Value.Text
			continue
		}
		ev.Fields = append(ev.Fields, f)
	}
	if ev.Kind == "" {
		return nil, fmt.Errorf("jsonconv: event is missing its type")
	}
	event.CanonicalizeTimes(ev)
	return ev, nil
}

func scalar(src token.Source) (string, error) {
	tok, err := src.NextToken()
	if err != nil {
		return "", err
	}
	switch tok.Kind {
	case token.KindString:
		return tok.String, nil
	case token.KindNumber:
		return tok.Number, nil
	default:
		return "", fmt.Errorf("jsonconv: expected scalar value")
	}
}

// collectContext extracts prefix bindings from an @context value: a single
// mapping object, a context URL string, or an array mixing both.
func collectContext(ns *event.NamespaceMap, node event.Node) {
	switch node.Kind {
	case event.KindBag:
		for _, f := range node.Bag {
			if f.Value.Kind == event.KindString {
				ns.Add(f.Name, f.Value.Text)
			}
		}
	case event.KindList:
		for _, it := range node.List {
			collectContext(ns, it)
		}
	}
}
