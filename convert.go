package epcisconv

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/openepcis/epcisconv/collector"
	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
	"github.com/openepcis/epcisconv/internal/pipe"
	"github.com/openepcis/epcisconv/xmlconv"
)

// VersionTransformer is the conversion orchestrator: it resolves a
// Conversion to a composition of converter stages joined by bounded
// in-memory pipes. Construct once per process and share; it holds no
// per-document state.
type VersionTransformer struct {
	log        zerolog.Logger
	validator  collector.Validator
	mapper     event.Mapper
	pipeChunks int

	xmlVersion *xmlconv.VersionTransformer
	xmlToJSON  *XMLToJSONConverter
	jsonToXML  *JSONToXMLConverter
	xmlValues  *XMLEventValueTransformer
	jsonValues *JSONEventValueTransformer
}

// Option customises a VersionTransformer.
type Option func(*VersionTransformer)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(t *VersionTransformer) { t.log = log }
}

// WithValidator wires a validator into every event handler. The validator
// must be safe for concurrent use.
func WithValidator(v collector.Validator) Option {
	return func(t *VersionTransformer) { t.validator = v }
}

// WithPipeBuffer sets the chunk capacity of the inter-stage pipes.
func WithPipeBuffer(chunks int) Option {
	return func(t *VersionTransformer) { t.pipeChunks = chunks }
}

// NewVersionTransformer builds an orchestrator.
func NewVersionTransformer(opts ...Option) *VersionTransformer {
	t := &VersionTransformer{
		log:        zerolog.Nop(),
		pipeChunks: pipe.DefaultChunks,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.rewire()
	return t
}

// MapWith returns a derived transformer whose converters run the given
// event-mapping hook on every parsed event. The hook must be pure with
// respect to other events.
func (t *VersionTransformer) MapWith(m event.Mapper) *VersionTransformer {
	d := *t
	d.mapper = m
	d.rewire()
	return &d
}

func (t *VersionTransformer) rewire() {
	t.xmlVersion = xmlconv.NewVersionTransformer(t.log)
	t.xmlToJSON = NewXMLToJSONConverter().MapWith(t.mapper)
	t.jsonToXML = NewJSONToXMLConverter().MapWith(t.mapper)
	t.xmlValues = NewXMLEventValueTransformer().MapWith(t.mapper)
	t.jsonValues = NewJSONEventValueTransformer().MapWith(t.mapper)
}

// Convert converts the EPCIS document in r per the request, autodetecting
// the input version when it is unset. Errors raised before any output is
// produced (detection, unsupported pairs) return synchronously; later
// failures surface as a problem-response document on the returned stream.
// When r is an io.Closer the pipeline closes it once finished with it,
// whether the conversion completed or the consumer closed the output early.
func (t *VersionTransformer) Convert(r io.Reader, c Conversion) (io.ReadCloser, error) {
	input := r
	if c.FromMediaType() == epcis.MediaJSONLD {
		if c.FromVersion() == epcis.VersionUnknown {
			c = c.withDetected(epcis.Version2_0)
		}
	} else {
		d, err := Detect(r)
		if err != nil {
			return nil, err
		}
		input = d.Restore(r)
		c = c.withDetected(d.Version)
	}
	return t.PerformConversion(input, c)
}

// PerformConversion converts without autodetection; the request must carry
// the input version.
func (t *VersionTransformer) PerformConversion(r io.Reader, c Conversion) (io.ReadCloser, error) {
	if !validPair(c.FromMediaType(), c.FromVersion()) || !validPair(c.ToMediaType(), c.ToVersion()) {
		return nil, Errf(KindUnsupportedConversion,
			"EPCIS 1.2 has no JSON binding")
	}

	flags := xmlconv.Flags{
		GS1Compliant:                 c.GenerateGS1CompliantDocument(),
		IncludeAssociationEvent:      c.IncludeAssociationEvent(),
		IncludePersistentDisposition: c.IncludePersistentDisposition(),
		IncludeSensorElementList:     c.IncludeSensorElementList(),
	}

	from := c.FromMediaType()
	to := c.ToMediaType()
	switch {
	case from == epcis.MediaXML && to == epcis.MediaXML:
		stream := r
		if c.FromVersion() == epcis.Version1_2 {
			stream = t.xmlVersionStage(stream, epcis.Version2_0, flags)
		}
		stream = t.xmlValueStage(stream)
		if c.ToVersion() == epcis.Version1_2 {
			stream = t.xmlVersionStage(stream, epcis.Version1_2, flags)
		}
		return asReadCloser(stream), nil

	case from == epcis.MediaXML && to == epcis.MediaJSONLD:
		stream := r
		if c.FromVersion() == epcis.Version1_2 {
			stream = t.xmlVersionStage(stream, epcis.Version2_0, flags)
		}
		return asReadCloser(t.stage(epcis.MediaJSONLD, stream, func(w io.Writer) error {
			h := collector.NewEventHandler(t.validator, collector.NewJSONEventCollector(w))
			return t.xmlToJSON.Convert(stream, h)
		})), nil

	case from == epcis.MediaJSONLD && to == epcis.MediaXML:
		stream := t.stage(epcis.MediaXML, r, func(w io.Writer) error {
			h := collector.NewEventHandler(t.validator, collector.NewXMLEventCollector(w, epcis.Version2_0))
			return t.jsonToXML.Convert(r, h)
		})
		if c.ToVersion() == epcis.Version1_2 {
			stream = t.xmlVersionStage(stream, epcis.Version1_2, flags)
		}
		return asReadCloser(stream), nil

	case from == epcis.MediaJSONLD && to == epcis.MediaJSONLD:
		return asReadCloser(t.stage(epcis.MediaJSONLD, r, func(w io.Writer) error {
			h := collector.NewEventHandler(t.validator, collector.NewJSONEventCollector(w))
			return t.jsonValues.Convert(r, h)
		})), nil
	}

	return nil, Errf(KindUnsupportedConversion,
		"requested conversion is not supported, check the media type and version pair")
}

// stage runs one producer on a worker goroutine writing into a bounded
// pipe. A failing producer leaves a problem-response document in the pipe,
// so consumers always read either a valid document or a parseable error.
// When the worker exits it closes its upstream reader, so cancellation
// (closing the final stream) cascades stage by stage back to the input:
// each worker observes a broken pipe on its next write, terminates, and
// releases the stream it was reading.
func (t *VersionTransformer) stage(media epcis.MediaType, upstream io.Reader, run func(w io.Writer) error) io.Reader {
	p := pipe.New(t.pipeChunks)
	go func() {
		err := run(p)
		if c, ok := upstream.(io.Closer); ok {
			_ = c.Close()
		}
		if err != nil {
			if errors.Is(err, pipe.ErrClosed) {
				// Consumer cancelled; nothing left to tell it.
				_ = p.CloseWrite()
				return
			}
			t.log.Warn().Err(err).Msg("conversion stage failed")
			if werr := ProblemFromError(err).Write(p, media); werr != nil && !errors.Is(werr, pipe.ErrClosed) {
				t.log.Warn().Err(werr).Msg("couldn't write problem response to output stream")
			}
		}
		_ = p.CloseWrite()
	}()
	return p
}

func (t *VersionTransformer) xmlVersionStage(r io.Reader, to epcis.Version, f xmlconv.Flags) io.Reader {
	return t.stage(epcis.MediaXML, r, func(w io.Writer) error {
		return t.xmlVersion.Transform(r, w, to, f)
	})
}

func (t *VersionTransformer) xmlValueStage(r io.Reader) io.Reader {
	return t.stage(epcis.MediaXML, r, func(w io.Writer) error {
		h := collector.NewEventHandler(t.validator, collector.NewXMLEventCollector(w, epcis.Version2_0))
		return t.xmlValues.Convert(r, h)
	})
}

// asReadCloser adapts intermediate readers; closing the final stream
// cancels upstream workers through pipe back-pressure.
func asReadCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}
