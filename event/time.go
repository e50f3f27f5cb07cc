package event

import "time"

// Timestamp fields are canonicalised to RFC3339 with millisecond precision
// when they parse; values that do not parse pass through untouched, since
// structural rewriting must not invent corrections.

var timeFields = map[string]bool{
	"eventTime":       true,
	"recordTime":      true,
	"declarationTime": true,
	"time":            true,
	"startTime":       true,
	"endTime":         true,
}

// CanonicalizeTimes rewrites known timestamp fields of the event, including
// nested occurrences (errorDeclaration, sensorMetadata), to canonical
// RFC3339 form.
func CanonicalizeTimes(e *Event) {
	for i := range e.Fields {
		canonNode(e.Fields[i].Name, &e.Fields[i].Value)
	}
}

func canonNode(name string, n *Node) {
	switch n.Kind {
	case KindString:
		if timeFields[trimAttr(name)] {
			n.Text = canonTime(n.Text)
		}
	case KindList:
		for i := range n.List {
			canonNode(name, &n.List[i])
		}
	case KindBag:
		for i := range n.Bag {
			canonNode(n.Bag[i].Name, &n.Bag[i].Value)
		}
	}
}

func trimAttr(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return name[1:]
	}
	return name
}

func canonTime(s string) string {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700", // offset without colon
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02T15:04:05.000Z07:00")
		}
	}
	return s
}
