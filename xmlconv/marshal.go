package xmlconv

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

// WriteEnvelopeStart writes the XML declaration, the epcis:EPCISDocument
// element with the collected namespace bindings, and opens
// EPCISBody/EventList.
func WriteEnvelopeStart(w io.Writer, doc *event.Document, version epcis.Version) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<epcis:EPCISDocument xmlns:epcis="` + epcis.XMLNamespace + `"`)
	for _, b := range doc.Namespaces.All() {
		if b.Prefix == epcis.EPCISPrefix {
			continue
		}
		buf.WriteString(` xmlns:` + b.Prefix + `="`)
		escape(&buf, b.URI)
		buf.WriteString(`"`)
	}
	buf.WriteString(` schemaVersion="` + version.String() + `"`)
	if doc.CreationDate != "" {
		buf.WriteString(` creationDate="`)
		escape(&buf, doc.CreationDate)
		buf.WriteString(`"`)
	}
	buf.WriteString("><EPCISBody><EventList>")
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteEnvelopeEnd closes EventList, EPCISBody and the document element.
func WriteEnvelopeEnd(w io.Writer) error {
	_, err := io.WriteString(w, "</EventList></EPCISBody></epcis:EPCISDocument>")
	return err
}

// MarshalEvent serialises one event bag as an XML element in the given
// version profile. Field order is taken from the bag as-is; callers order
// it beforehand. In the 1.2 profile the event element is wrapped in the
// extension framing its kind requires inside EventList.
func MarshalEvent(doc *event.Document, ev *event.Event, version epcis.Version) ([]byte, error) {
	var buf bytes.Buffer
	wrap := 0
	if version == epcis.Version1_2 {
		wrap = event.WrapperFor(ev.Kind).EventWrap
	}
	for i := 0; i < wrap; i++ {
		buf.WriteString("<extension>")
	}
	writeElement(&buf, ev.Kind, event.Node{Kind: event.KindBag, Bag: ev.Fields})
	for i := 0; i < wrap; i++ {
		buf.WriteString("</extension>")
	}
	return buf.Bytes(), nil
}

// writeElement renders a canonical node as the element with the given
// name, reversing the projections applied by the reader.
func writeElement(buf *bytes.Buffer, name string, n event.Node) {
	local, xmlns := splitQName(name)

	switch n.Kind {
	case event.KindString, event.KindNumber, event.KindBool:
		openTag(buf, local, xmlns, nil, false)
		escape(buf, scalarText(n))
		buf.WriteString("</" + local + ">")
		return

	case event.KindList:
		if item, ok := event.ListItemName(baseName(name)); ok {
			// Wrapper list: <epcList><epc>..</epc></epcList>.
			openTag(buf, local, xmlns, nil, len(n.List) == 0)
			if len(n.List) == 0 {
				return
			}
			for _, it := range n.List {
				writeElement(buf, item, it)
			}
			buf.WriteString("</" + local + ">")
			return
		}
		// Directly repeated element: <set>..</set><set>..</set>.
		for _, it := range n.List {
			writeElement(buf, name, it)
		}
		return

	case event.KindBag:
		if valueField, ok := event.TypedPairValueField(baseName(name)); ok {
			writeTypedPair(buf, local, xmlns, valueField, n)
			return
		}
		attrs, text, children := splitBag(baseName(name), n)
		openTag(buf, local, xmlns, attrs, len(children) == 0 && text == "")
		if len(children) == 0 && text == "" {
			return
		}
		if text != "" {
			escape(buf, text)
		}
		for _, f := range children {
			writeElement(buf, f.Name, f.Value)
		}
		buf.WriteString("</" + local + ">")
	}
}

// splitBag separates a bag into attributes, character data and child
// elements. "@name" fields and, for attribute-carried containers, plain
// scalar fields become attributes.
func splitBag(name string, n event.Node) (attrs []event.Field, text string, children []event.Field) {
	attrCarried := event.AttrCarried(name)
	for _, f := range n.Bag {
		switch {
		case f.Name == "#text":
			text = f.Value.Text
		case strings.HasPrefix(f.Name, "@"):
			attrs = append(attrs, event.Field{Name: f.Name[1:], Value: f.Value})
		case attrCarried && f.Value.Kind != event.KindBag && f.Value.Kind != event.KindList:
			attrs = append(attrs, f)
		default:
			children = append(children, f)
		}
	}
	return attrs, text, children
}

func writeTypedPair(buf *bytes.Buffer, local, xmlns, valueField string, n event.Node) {
	var attrs []event.Field
	text := ""
	for _, f := range n.Bag {
		name := strings.TrimPrefix(f.Name, "@")
		if name == valueField {
			text = f.Value.Text
			continue
		}
		attrs = append(attrs, event.Field{Name: name, Value: f.Value})
	}
	openTag(buf, local, xmlns, attrs, text == "")
	if text == "" {
		return
	}
	escape(buf, text)
	buf.WriteString("</" + local + ">")
}

func openTag(buf *bytes.Buffer, local, xmlns string, attrs []event.Field, selfClose bool) {
	buf.WriteString("<" + local)
	if xmlns != "" {
		buf.WriteString(` xmlns="`)
		escape(buf, xmlns)
		buf.WriteString(`"`)
	}
	for _, a := range attrs {
		buf.WriteString(" " + a.Name + `="`)
		escape(buf, scalarText(a.Value))
		buf.WriteString(`"`)
	}
	if selfClose {
		buf.WriteString("/>")
		return
	}
	buf.WriteString(">")
}

// splitQName splits a canonical field name into the element name to emit
// and an inline xmlns declaration. Prefixed names are emitted verbatim
// (their prefix is declared on the document element); names whose prefix
// part is a raw URI fall back to an inline default namespace. A prefix
// containing a colon cannot be a legal XML prefix, so urn-scheme URIs are
// caught along with the slash and hash forms.
func splitQName(name string) (local, xmlns string) {
	i := strings.LastIndex(name, ":")
	if i < 0 {
		return name, ""
	}
	prefix := name[:i]
	if strings.ContainsAny(prefix, "/#:") {
		return name[i+1:], prefix
	}
	return name, ""
}

func baseName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func scalarText(n event.Node) string {
	switch n.Kind {
	case event.KindBool:
		if n.Bool {
			return "true"
		}
		return "false"
	default:
		return n.Text
	}
}

func escape(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
