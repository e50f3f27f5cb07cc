package xmlconv

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

// rawElem is the unprojected form of one parsed element subtree.
type rawElem struct {
	name     string // canonical field name, foreign names as "prefix:local"
	attrs    []event.Field
	text     string
	children []rawElem
}

// parseRaw drains the element started by start, qualifying names against
// the document namespace map.
func (r *Reader) parseRaw(start xml.StartElement) (rawElem, error) {
	e := rawElem{name: r.fieldName(start.Name)}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		e.attrs = append(e.attrs, event.Field{Name: "@" + r.fieldName(a.Name), Value: event.String(a.Value)})
	}
	var text strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return rawElem{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := r.parseRaw(t)
			if err != nil {
				return rawElem{}, err
			}
			e.children = append(e.children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			e.text = strings.TrimSpace(text.String())
			return e, nil
		}
	}
}

// fieldName maps an XML name to the canonical field vocabulary. Names in
// the EPCIS namespace and unqualified names map to the local part; foreign
// names carry the prefix alias from the namespace map. A URI missing from
// the map is used verbatim as the alias so no information is lost.
func (r *Reader) fieldName(n xml.Name) string {
	if n.Space == "" || n.Space == epcis.XMLNamespace {
		return n.Local
	}
	if r.doc != nil {
		if p, ok := r.doc.Namespaces.PrefixFor(n.Space); ok {
			return p + ":" + n.Local
		}
	}
	return n.Space + ":" + n.Local
}

// canonicalize projects a raw element into the canonical node model shared
// with the JSON side.
func canonicalize(e rawElem) event.Node {
	// Known list wrappers become arrays of their item values.
	if itemName, ok := event.ListItemName(e.name); ok && len(e.children) > 0 {
		if allNamed(e.children, itemName) {
			list := event.Node{Kind: event.KindList}
			for _, c := range e.children {
				list.List = append(list.List, canonicalize(c))
			}
			return list
		}
	}
	if _, ok := event.ListItemName(e.name); ok && len(e.children) == 0 && e.text == "" {
		return event.Node{Kind: event.KindList}
	}

	// Typed pairs: <bizTransaction type="...">value</bizTransaction>.
	if valueField, ok := event.TypedPairValueField(e.name); ok {
		bag := event.Node{Kind: event.KindBag}
		for _, a := range e.attrs {
			bag.Bag = append(bag.Bag, event.Field{Name: strings.TrimPrefix(a.Name, "@"), Value: a.Value})
		}
		bag.Bag = append(bag.Bag, event.Field{Name: valueField, Value: event.String(e.text)})
		return bag
	}

	// Pure scalar.
	if len(e.children) == 0 && len(e.attrs) == 0 {
		return scalarNode(e.name, e.text)
	}

	// Scalar with attributes, or a container.
	bag := event.Node{Kind: event.KindBag}
	for _, a := range e.attrs {
		name := a.Name
		if event.AttrCarried(e.name) {
			// Known attribute-carried containers surface attrs as plain
			// fields, matching the JSON-LD rendition.
			name = strings.TrimPrefix(name, "@")
			bag.Bag = append(bag.Bag, event.Field{Name: name, Value: scalarNode(name, a.Value.Text)})
			continue
		}
		bag.Bag = append(bag.Bag, event.Field{Name: name, Value: a.Value})
	}
	for _, c := range e.children {
		bag.Bag = appendChild(bag.Bag, c.name, canonicalize(c))
	}
	if e.text != "" {
		bag.Bag = append(bag.Bag, event.Field{Name: "#text", Value: event.String(e.text)})
	}
	return bag
}

// appendChild adds a child field, coalescing repeated element names into
// lists.
func appendChild(fields []event.Field, name string, node event.Node) []event.Field {
	for i := range fields {
		if fields[i].Name != name {
			continue
		}
		if fields[i].Value.Kind == event.KindList && event.RepeatedElement(name) {
			fields[i].Value.List = append(fields[i].Value.List, node)
			return fields
		}
		if event.RepeatedElement(name) {
			fields[i].Value = event.List(fields[i].Value, node)
			return fields
		}
	}
	if event.RepeatedElement(name) {
		// Elements that may repeat are lists even with one occurrence, so
		// the JSON rendition is stable.
		node = event.List(node)
	}
	return append(fields, event.Field{Name: name, Value: node})
}

func allNamed(children []rawElem, name string) bool {
	for _, c := range children {
		if c.name != name {
			return false
		}
	}
	return true
}

func scalarNode(name, text string) event.Node {
	base := name
	if i := strings.LastIndex(base, ":"); i >= 0 {
		base = base[i+1:]
	}
	if event.NumericField(base) {
		if _, err := strconv.ParseFloat(text, 64); err == nil {
			return event.Number(text)
		}
	}
	switch text {
	case "true":
		if base == "booleanValue" {
			return event.Bool(true)
		}
	case "false":
		if base == "booleanValue" {
			return event.Bool(false)
		}
	}
	return event.String(text)
}
