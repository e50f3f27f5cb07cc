package epcisconv

import (
	"errors"
	"io"

	"github.com/openepcis/epcisconv/collector"
	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
	"github.com/openepcis/epcisconv/jsonconv"
	"github.com/openepcis/epcisconv/xmlconv"
)

// The four event-stream converters share one loop shape: pull events from a
// reader, reorder and map them, serialise, and hand the bytes to the event
// handler. Each is stateless apart from its optional mapper and safe for
// concurrent use.

type eventReader interface {
	ReadDocument() (*event.Document, error)
	NextEvent() (*event.Event, error)
}

type eventMarshaler func(doc *event.Document, ev *event.Event) ([]byte, error)

func convertEvents(r eventReader, h *collector.EventHandler, mapper event.Mapper, marshal eventMarshaler) error {
	doc, err := r.ReadDocument()
	if err != nil {
		return Wrap(KindMalformedInput, err, "parsing document envelope")
	}
	if err := h.Start(doc); err != nil {
		return Wrap(KindIOFailure, err, "writing document prologue")
	}
	for {
		ev, err := r.NextEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Wrap(KindMalformedInput, err, "parsing event")
		}
		event.Reorder(ev)
		if mapper != nil {
			ev, err = mapper(ev)
			if err != nil {
				return Wrap(KindMappingFailure, err, "event mapper")
			}
			if ev == nil {
				continue
			}
		}
		data, err := marshal(doc, ev)
		if err != nil {
			return Wrap(KindIOFailure, err, "serialising event")
		}
		if err := h.Handle(data); err != nil {
			if errors.Is(err, collector.ErrValidation) {
				return Wrap(KindValidationFailure, err, "event rejected by validator")
			}
			return Wrap(KindIOFailure, err, "writing event")
		}
	}
	if err := h.End(); err != nil {
		return Wrap(KindIOFailure, err, "writing document epilogue")
	}
	return nil
}

// XMLToJSONConverter transcodes EPCIS 2.0 XML into JSON-LD, event by
// event.
type XMLToJSONConverter struct {
	mapper event.Mapper
}

// NewXMLToJSONConverter returns a converter without an event mapper.
func NewXMLToJSONConverter() *XMLToJSONConverter { return &XMLToJSONConverter{} }

// MapWith returns a converter wired with the event-mapping hook.
func (c *XMLToJSONConverter) MapWith(m event.Mapper) *XMLToJSONConverter {
	return &XMLToJSONConverter{mapper: m}
}

// Convert parses r and feeds serialised JSON events to h.
func (c *XMLToJSONConverter) Convert(r io.Reader, h *collector.EventHandler) error {
	return convertEvents(xmlconv.NewReader(r), h, c.mapper,
		func(_ *event.Document, ev *event.Event) ([]byte, error) {
			return jsonconv.MarshalEvent(ev)
		})
}

// JSONToXMLConverter transcodes EPCIS 2.0 JSON-LD into 2.0 XML, event by
// event.
type JSONToXMLConverter struct {
	mapper event.Mapper
}

// NewJSONToXMLConverter returns a converter without an event mapper.
func NewJSONToXMLConverter() *JSONToXMLConverter { return &JSONToXMLConverter{} }

// MapWith returns a converter wired with the event-mapping hook.
func (c *JSONToXMLConverter) MapWith(m event.Mapper) *JSONToXMLConverter {
	return &JSONToXMLConverter{mapper: m}
}

// Convert parses r and feeds serialised XML events to h.
func (c *JSONToXMLConverter) Convert(r io.Reader, h *collector.EventHandler) error {
	return convertEvents(jsonconv.NewReader(r), h, c.mapper, marshalXML20)
}

// XMLEventValueTransformer is the XML 2.0 pass-through: events are
// re-parsed, value-normalised, optionally mapped and re-emitted.
type XMLEventValueTransformer struct {
	mapper event.Mapper
}

// NewXMLEventValueTransformer returns a pass-through without a mapper.
func NewXMLEventValueTransformer() *XMLEventValueTransformer {
	return &XMLEventValueTransformer{}
}

// MapWith returns a transformer wired with the event-mapping hook.
func (c *XMLEventValueTransformer) MapWith(m event.Mapper) *XMLEventValueTransformer {
	return &XMLEventValueTransformer{mapper: m}
}

// Convert parses r and feeds normalised XML events to h.
func (c *XMLEventValueTransformer) Convert(r io.Reader, h *collector.EventHandler) error {
	return convertEvents(xmlconv.NewReader(r), h, c.mapper, marshalXML20)
}

// JSONEventValueTransformer is the JSON 2.0 pass-through.
type JSONEventValueTransformer struct {
	mapper event.Mapper
}

// NewJSONEventValueTransformer returns a pass-through without a mapper.
func NewJSONEventValueTransformer() *JSONEventValueTransformer {
	return &JSONEventValueTransformer{}
}

// MapWith returns a transformer wired with the event-mapping hook.
func (c *JSONEventValueTransformer) MapWith(m event.Mapper) *JSONEventValueTransformer {
	return &JSONEventValueTransformer{mapper: m}
}

// Convert parses r and feeds normalised JSON events to h.
func (c *JSONEventValueTransformer) Convert(r io.Reader, h *collector.EventHandler) error {
	return convertEvents(jsonconv.NewReader(r), h, c.mapper,
		func(_ *event.Document, ev *event.Event) ([]byte, error) {
			return jsonconv.MarshalEvent(ev)
		})
}

func marshalXML20(doc *event.Document, ev *event.Event) ([]byte, error) {
	return xmlconv.MarshalEvent(doc, ev, epcis.Version2_0)
}
