// Package collector is the write side of every conversion: an EventHandler
// that validates and hands serialised events to a Collector, which owns the
// document framing for its media type.
package collector

import (
	"errors"
	"io"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
	"github.com/openepcis/epcisconv/jsonconv"
	"github.com/openepcis/epcisconv/xmlconv"
)

// ErrValidation wraps validator rejections so the orchestrator can classify
// them.
var ErrValidation = errors.New("event validation failed")

// Validator checks one serialised event. Implementations must be safe for
// concurrent use across pipelines.
type Validator interface {
	ValidateEvent(media epcis.MediaType, data []byte) error
}

// Collector frames and writes the output document: prologue, per-event
// payloads, epilogue.
type Collector interface {
	Start(doc *event.Document) error
	Collect(data []byte) error
	End() error
	Media() epcis.MediaType
}

// EventHandler mediates between a converter's event stream and the output:
// it invokes the optional validator on each event and forwards the event to
// the optional collector. A nil collector gives validation-only mode.
type EventHandler struct {
	validator   Validator
	collector   Collector
	media       epcis.MediaType
	skipInvalid bool

	doc     *event.Document
	started bool
}

// NewEventHandler builds a handler. Either argument may be nil.
func NewEventHandler(v Validator, c Collector) *EventHandler {
	return &EventHandler{validator: v, collector: c}
}

// SkipInvalid switches the failure policy from abort to skip: rejected
// events are dropped and the stream continues.
func (h *EventHandler) SkipInvalid() *EventHandler {
	h.skipInvalid = true
	return h
}

// ForMedia pins the media type handed to the validator. Without it the
// handler reports the collector's media; validation-only handlers that
// carry XML events must pin it here.
func (h *EventHandler) ForMedia(m epcis.MediaType) *EventHandler {
	h.media = m
	return h
}

// Start records the envelope. The prologue itself is deferred to the first
// event so a converter that fails before producing anything never leaves a
// dangling open document.
func (h *EventHandler) Start(doc *event.Document) error {
	h.doc = doc
	return nil
}

// Handle validates and writes one serialised event.
func (h *EventHandler) Handle(data []byte) error {
	if h.validator != nil {
		media := h.media
		if media == epcis.MediaUnknown {
			media = epcis.MediaJSONLD
			if h.collector != nil {
				media = h.collector.Media()
			}
		}
		if err := h.validator.ValidateEvent(media, data); err != nil {
			if h.skipInvalid {
				return nil
			}
			return errors.Join(ErrValidation, err)
		}
	}
	if h.collector == nil {
		return nil
	}
	if !h.started {
		if err := h.collector.Start(h.doc); err != nil {
			return err
		}
		h.started = true
	}
	return h.collector.Collect(data)
}

// End closes the document, writing the prologue first when no event was
// handled.
func (h *EventHandler) End() error {
	if h.collector == nil {
		return nil
	}
	if !h.started {
		if err := h.collector.Start(h.doc); err != nil {
			return err
		}
		h.started = true
	}
	return h.collector.End()
}

// XMLEventCollector frames an EPCIS XML document around collected events.
type XMLEventCollector struct {
	w       io.Writer
	version epcis.Version
	doc     *event.Document
}

// NewXMLEventCollector writes a document in the given version profile to w.
func NewXMLEventCollector(w io.Writer, version epcis.Version) *XMLEventCollector {
	return &XMLEventCollector{w: w, version: version}
}

func (c *XMLEventCollector) Media() epcis.MediaType { return epcis.MediaXML }

func (c *XMLEventCollector) Start(doc *event.Document) error {
	c.doc = doc
	if doc.SingleEvent {
		return nil
	}
	return xmlconv.WriteEnvelopeStart(c.w, doc, c.version)
}

func (c *XMLEventCollector) Collect(data []byte) error {
	_, err := c.w.Write(data)
	return err
}

func (c *XMLEventCollector) End() error {
	if c.doc != nil && c.doc.SingleEvent {
		return nil
	}
	return xmlconv.WriteEnvelopeEnd(c.w)
}

// JSONEventCollector frames an EPCIS JSON-LD document around collected
// events.
type JSONEventCollector struct {
	w     io.Writer
	doc   *event.Document
	count int
}

// NewJSONEventCollector writes a JSON-LD document to w.
func NewJSONEventCollector(w io.Writer) *JSONEventCollector {
	return &JSONEventCollector{w: w}
}

func (c *JSONEventCollector) Media() epcis.MediaType { return epcis.MediaJSONLD }

func (c *JSONEventCollector) Start(doc *event.Document) error {
	c.doc = doc
	if doc.SingleEvent {
		return nil
	}
	return jsonconv.WriteEnvelopeStart(c.w, doc)
}

func (c *JSONEventCollector) Collect(data []byte) error {
	if c.count > 0 {
		if _, err := io.WriteString(c.w, ","); err != nil {
			return err
		}
	}
	c.count++
	_, err := c.w.Write(data)
	return err
}

func (c *JSONEventCollector) End() error {
	if c.doc != nil && c.doc.SingleEvent {
		return nil
	}
	return jsonconv.WriteEnvelopeEnd(c.w)
}
