package jsonconv

import (
	"bytes"
	"io"

	j "github.com/goccy/go-json"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

// WriteEnvelopeStart writes the JSON-LD envelope: @context built from the
// EPCIS context URL plus the collected namespace bindings, the document
// attributes, and opens epcisBody.eventList.
func WriteEnvelopeStart(w io.Writer, doc *event.Document) error {
	var buf bytes.Buffer
	buf.WriteString(`{"@context":["` + epcis.ContextURL + `"`)
	for _, b := range doc.Namespaces.All() {
		if b.Prefix == epcis.EPCISPrefix {
			continue
		}
		buf.WriteString(`,{`)
		writeString(&buf, b.Prefix)
		buf.WriteByte(':')
		writeString(&buf, b.URI)
		buf.WriteByte('}')
	}
	buf.WriteString(`],"type":"EPCISDocument","schemaVersion":"2.0"`)
	if doc.CreationDate != "" {
		buf.WriteString(`,"creationDate":`)
		writeString(&buf, doc.CreationDate)
	}
	buf.WriteString(`,"epcisBody":{"eventList":[`)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteEnvelopeEnd closes eventList, epcisBody and the document object.
func WriteEnvelopeEnd(w io.Writer) error {
	_, err := io.WriteString(w, "]}}")
	return err
}

// MarshalEvent serialises one event bag as a JSON-LD event object with
// "type" first and the remaining fields in bag order.
func MarshalEvent(ev *event.Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	writeString(&buf, ev.Kind)
	for _, f := range ev.Fields {
		buf.WriteByte(',')
		writeString(&buf, f.Name)
		buf.WriteByte(':')
		writeNode(&buf, f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n event.Node) {
	switch n.Kind {
	case event.KindString:
		writeString(buf, n.Text)
	case event.KindNumber:
		if n.Text == "" {
			buf.WriteByte('0')
			return
		}
		buf.WriteString(n.Text)
	case event.KindBool:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case event.KindList:
		buf.WriteByte('[')
		for i, it := range n.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode(buf, it)
		}
		buf.WriteByte(']')
	case event.KindBag:
		buf.WriteByte('{')
		for i, f := range n.Bag {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, f.Name)
			buf.WriteByte(':')
			writeNode(buf, f.Value)
		}
		buf.WriteByte('}')
	}
}

// writeString escapes via goccy, matching the escaping of every other JSON
// byte the module emits.
func writeString(buf *bytes.Buffer, s string) {
	b, err := j.Marshal(s)
	if err != nil {
		// Strings cannot fail to marshal; keep the output well formed
		// regardless.
		buf.WriteString(`""`)
		return
	}
	buf.Write(b)
}
