package xmlconv

import (
	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

// Flags gates 2.0-only content in 1.2 output.
type Flags struct {
	GS1Compliant                 bool
	IncludeAssociationEvent      bool
	IncludePersistentDisposition bool
	IncludeSensorElementList     bool
}

// DefaultFlags enables everything.
func DefaultFlags() Flags {
	return Flags{
		GS1Compliant:                 true,
		IncludeAssociationEvent:      true,
		IncludePersistentDisposition: true,
		IncludeSensorElementList:     true,
	}
}

// Downgrade restructures a flat 2.0 event into the 1.2 shape: wrapper
// nesting, 1.2 element order and required empty placeholders. It returns
// nil when the event is elided entirely (AssociationEvent with the flag
// off).
func Downgrade(ev *event.Event, f Flags) *event.Event {
	if ev.Kind == epcis.AssociationEvent && !f.IncludeAssociationEvent {
		return nil
	}

	in := &event.Event{Kind: ev.Kind, Fields: append([]event.Field(nil), ev.Fields...)}
	if !f.IncludePersistentDisposition {
		in.Remove("persistentDisposition")
	}
	if !f.IncludeSensorElementList {
		in.Remove("sensorElementList")
	}
	if f.GS1Compliant {
		in.Remove("certificationInfo")
	}

	if ev.Kind == epcis.AssociationEvent {
		// The 1.2 rendition keeps the 2.0 shape; only the EventList-level
		// double extension framing differs, applied at marshal time.
		out := &event.Event{Kind: in.Kind, Fields: in.Fields}
		event.Reorder(out)
		return out
	}

	wrapper := event.WrapperFor(ev.Kind)
	out := &event.Event{Kind: ev.Kind}

	appendIfPresent := func(name string) {
		if v, ok := in.Remove(name); ok {
			out.Fields = append(out.Fields, event.Field{Name: name, Value: v})
		}
	}

	appendIfPresent("eventTime")
	appendIfPresent("recordTime")
	appendIfPresent("eventTimeZoneOffset")

	var baseBag []event.Field
	for _, name := range wrapper.Base {
		if v, ok := in.Remove(name); ok {
			baseBag = append(baseBag, event.Field{Name: name, Value: v})
		}
	}
	if len(baseBag) > 0 {
		out.Fields = append(out.Fields, event.Field{
			Name:  epcis.BaseExtension,
			Value: event.Node{Kind: event.KindBag, Bag: baseBag},
		})
	}

	inExtension := map[string]bool{}
	for _, n := range wrapper.Extension {
		inExtension[n] = true
	}

	for _, name := range event.Order12(ev.Kind)[3:] { // time fields already placed
		if inExtension[name] {
			continue
		}
		if v, ok := in.Remove(name); ok {
			out.Fields = append(out.Fields, event.Field{Name: name, Value: v})
			continue
		}
		if requiredEmpty(wrapper, name) {
			out.Fields = append(out.Fields, event.Field{Name: name, Value: event.Node{Kind: event.KindList}})
		}
	}

	var extBag []event.Field
	for _, name := range wrapper.Extension {
		if v, ok := in.Remove(name); ok {
			extBag = append(extBag, event.Field{Name: name, Value: v})
		}
	}
	var innerBag []event.Field
	for _, name := range wrapper.Inner {
		if v, ok := in.Remove(name); ok {
			innerBag = append(innerBag, event.Field{Name: name, Value: v})
		}
	}
	if v, ok := in.Remove("certificationInfo"); ok {
		innerBag = append(innerBag, event.Field{Name: "certificationInfo", Value: v})
	}
	if len(innerBag) > 0 {
		extBag = append(extBag, event.Field{
			Name:  epcis.ExtensionElem,
			Value: event.Node{Kind: event.KindBag, Bag: innerBag},
		})
	}
	if len(extBag) > 0 {
		out.Fields = append(out.Fields, event.Field{
			Name:  epcis.ExtensionElem,
			Value: event.Node{Kind: event.KindBag, Bag: extBag},
		})
	}

	// Whatever remains is user-defined; keep input order at the outermost
	// level.
	out.Fields = append(out.Fields, in.Fields...)
	return out
}

func requiredEmpty(w event.Wrapper12, name string) bool {
	for _, n := range w.RequiredEmpty {
		if n == name {
			return true
		}
	}
	return false
}

// Upgrade flattens a 1.2-shaped event into the 2.0 shape: baseExtension and
// extension/extension chains are spliced into the top level and known
// fields are re-sorted into 2.0 order.
func Upgrade(ev *event.Event) *event.Event {
	out := &event.Event{Kind: ev.Kind, Fields: flatten(ev.Fields)}
	event.Reorder(out)
	return out
}

// flatten splices every child of a baseExtension or extension wrapper bag
// to the top level, recursively following nested extension chains. User
// extensions found inside a wrapper surface alongside the known fields.
func flatten(fields []event.Field) []event.Field {
	var out []event.Field
	for _, f := range fields {
		if (f.Name == epcis.BaseExtension || f.Name == epcis.ExtensionElem) &&
			f.Value.Kind == event.KindBag {
			out = append(out, flatten(f.Value.Bag)...)
			continue
		}
		out = append(out, f)
	}
	return out
}
