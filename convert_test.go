package epcisconv

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	j "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

const xml20Doc = `<?xml version="1.0" encoding="UTF-8"?>
<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" xmlns:example="https://ns.example.com/epcis" schemaVersion="2.0" creationDate="2021-03-08T10:00:00.000Z">
 <EPCISBody><EventList>
  <ObjectEvent>
    <eventTime>2021-04-01T10:10:16.123Z</eventTime>
    <eventTimeZoneOffset>+02:00</eventTimeZoneOffset>
    <eventID>urn:uuid:374d95fc-9457-4a51-bd6a-0bba133845a8</eventID>
    <epcList><epc>urn:epc:id:sgtin:0614141.107346.2017</epc></epcList>
    <action>OBSERVE</action>
    <persistentDisposition><set>urn:x:completeness_verified</set></persistentDisposition>
    <quantityList><quantityElement><epcClass>urn:epc:class:lgtin:1</epcClass><quantity>200.50</quantity></quantityElement></quantityList>
    <example:myField>abc</example:myField>
  </ObjectEvent>
  <AssociationEvent>
    <eventTime>2021-04-01T12:00:00.000Z</eventTime>
    <eventTimeZoneOffset>+02:00</eventTimeZoneOffset>
    <parentID>urn:epc:id:grai:4012345.55555.987</parentID>
    <action>ADD</action>
  </AssociationEvent>
 </EventList></EPCISBody>
</epcis:EPCISDocument>`

const xml12Doc = `<?xml version="1.0"?>
<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="1.2" creationDate="2020-01-15T10:00:00.000Z">
 <EPCISBody><EventList>
  <ObjectEvent>
    <eventTime>2020-01-15T00:00:00.000Z</eventTime>
    <eventTimeZoneOffset>+01:00</eventTimeZoneOffset>
    <baseExtension><eventID>urn:uuid:1</eventID></baseExtension>
    <epcList><epc>urn:epc:id:sgtin:1</epc></epcList>
    <action>OBSERVE</action>
    <extension>
      <quantityList><quantityElement><epcClass>urn:epc:class:lgtin:1</epcClass><quantity>7</quantity></quantityElement></quantityList>
    </extension>
  </ObjectEvent>
 </EventList></EPCISBody>
</epcis:EPCISDocument>`

const json20Doc = `{
  "@context": ["https://ref.gs1.org/standards/epcis/2.0.0/epcis-context.jsonld", {"example": "https://ns.example.com/epcis"}],
  "type": "EPCISDocument",
  "schemaVersion": "2.0",
  "creationDate": "2021-03-08T10:00:00.000Z",
  "epcisBody": {"eventList": [
    {
      "type": "ObjectEvent",
      "eventTime": "2021-04-01T10:10:16.123Z",
      "eventTimeZoneOffset": "+02:00",
      "epcList": ["urn:epc:id:sgtin:0614141.107346.2017"],
      "action": "OBSERVE",
      "example:myField": "abc"
    }
  ]}
}`

func convertAll(t *testing.T, tr *VersionTransformer, in string, c Conversion) string {
	t.Helper()
	out, err := tr.Convert(strings.NewReader(in), c)
	require.NoError(t, err)
	defer out.Close()
	b, err := io.ReadAll(out)
	require.NoError(t, err)
	return string(b)
}

func TestConvert_XMLToJSON(t *testing.T) {
	tr := NewVersionTransformer()
	got := convertAll(t, tr, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))

	var doc map[string]any
	require.NoError(t, j.Unmarshal([]byte(got), &doc), "output is valid JSON: %s", got)

	assert.Contains(t, got, `"@context":["`+epcis.ContextURL+`",{"example":"https://ns.example.com/epcis"}]`)
	assert.Contains(t, got, `"type":"EPCISDocument"`)
	assert.Contains(t, got, `"schemaVersion":"2.0"`)
	assert.Contains(t, got, `"type":"ObjectEvent"`)
	assert.Contains(t, got, `"eventID":"urn:uuid:374d95fc-9457-4a51-bd6a-0bba133845a8"`)
	assert.Contains(t, got, `"epcList":["urn:epc:id:sgtin:0614141.107346.2017"]`)
	assert.Contains(t, got, `"persistentDisposition":{"set":["urn:x:completeness_verified"]}`)
	assert.Contains(t, got, `"quantity":200.50`, "numbers stay unquoted with their lexical form")
	assert.Contains(t, got, `"example:myField":"abc"`)
	assert.Contains(t, got, `"type":"AssociationEvent"`)
	assert.NotContains(t, got, "ProblemResponseBody")
}

func TestConvert_XML12ToJSON(t *testing.T) {
	tr := NewVersionTransformer()
	got := convertAll(t, tr, xml12Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))

	var doc map[string]any
	require.NoError(t, j.Unmarshal([]byte(got), &doc), "output is valid JSON: %s", got)

	assert.Contains(t, got, `"eventID":"urn:uuid:1"`, "baseExtension content surfaces flat")
	assert.Contains(t, got, `"quantityList":[{"epcClass":"urn:epc:class:lgtin:1","quantity":7}]`)
	assert.NotContains(t, got, "baseExtension")
	assert.NotContains(t, got, `"extension"`)
}

func TestConvert_JSONToXML12(t *testing.T) {
	tr := NewVersionTransformer()
	got := convertAll(t, tr, json20Doc,
		NewConversion(epcis.MediaJSONLD, epcis.MediaXML, epcis.Version1_2))

	assert.Contains(t, got, `schemaVersion="1.2"`)
	assert.Contains(t, got, `xmlns:example="https://ns.example.com/epcis"`)
	assert.Contains(t, got, `<epcList><epc>urn:epc:id:sgtin:0614141.107346.2017</epc></epcList>`)
	assert.Contains(t, got, `<example:myField>abc</example:myField>`)
	assert.NotContains(t, got, "ProblemResponseBody")
}

func TestConvert_XML20ToXML12RoundTrip(t *testing.T) {
	tr := NewVersionTransformer()
	down := convertAll(t, tr, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaXML, epcis.Version1_2))

	assert.Contains(t, down, `schemaVersion="1.2"`)
	assert.Contains(t, down, `<baseExtension><eventID>urn:uuid:374d95fc-9457-4a51-bd6a-0bba133845a8</eventID></baseExtension>`)
	assert.Contains(t, down, `<extension><extension><AssociationEvent>`)

	up := convertAll(t, tr, down,
		NewConversion(epcis.MediaXML, epcis.MediaXML, epcis.Version2_0))
	assert.Contains(t, up, `schemaVersion="2.0"`)
	assert.NotContains(t, up, "baseExtension")
	assert.Contains(t, up, `<eventID>urn:uuid:374d95fc-9457-4a51-bd6a-0bba133845a8</eventID>`)
	assert.Contains(t, up, `<persistentDisposition><set>urn:x:completeness_verified</set></persistentDisposition>`)
}

func TestConvert_XMLToJSONToXMLRoundTrip(t *testing.T) {
	tr := NewVersionTransformer()
	asJSON := convertAll(t, tr, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	backToXML := convertAll(t, tr, asJSON,
		NewConversion(epcis.MediaJSONLD, epcis.MediaXML, epcis.Version2_0))

	assert.Contains(t, backToXML, `schemaVersion="2.0"`)
	assert.Contains(t, backToXML, `xmlns:example="https://ns.example.com/epcis"`)
	assert.Contains(t, backToXML, `<epcList><epc>urn:epc:id:sgtin:0614141.107346.2017</epc></epcList>`)
	assert.Contains(t, backToXML, `<quantity>200.50</quantity>`)
	assert.Contains(t, backToXML, `<persistentDisposition><set>urn:x:completeness_verified</set></persistentDisposition>`)
	assert.Contains(t, backToXML, `<example:myField>abc</example:myField>`)
	assert.Contains(t, backToXML, `<AssociationEvent>`)
	assert.NotContains(t, backToXML, "ProblemResponseBody")
}

func TestConvert_MediaMismatchYieldsProblemResponse(t *testing.T) {
	// JSON bytes declared as XML input: detection still finds the version,
	// the XML stage chokes, and the output carries a problem response.
	tr := NewVersionTransformer()
	got := convertAll(t, tr, json20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.Contains(t, got, `"type":"epcisException:malformed_input"`)
}

func TestConvert_JSONPassThrough(t *testing.T) {
	tr := NewVersionTransformer()
	got := convertAll(t, tr, json20Doc,
		NewConversion(epcis.MediaJSONLD, epcis.MediaJSONLD, epcis.Version2_0))

	var doc map[string]any
	require.NoError(t, j.Unmarshal([]byte(got), &doc))
	assert.Contains(t, got, `"type":"ObjectEvent"`)
	assert.Contains(t, got, `"example:myField":"abc"`)
}

func TestConvert_UnsupportedPairs(t *testing.T) {
	tr := NewVersionTransformer()

	_, err := tr.Convert(strings.NewReader(json20Doc),
		NewConversion(epcis.MediaJSONLD, epcis.MediaJSONLD, epcis.Version1_2))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnsupportedConversion))

	_, err = tr.PerformConversion(strings.NewReader(xml12Doc),
		NewConversion(epcis.MediaJSONLD, epcis.MediaXML, epcis.Version2_0,
			WithFromVersion(epcis.Version1_2)))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnsupportedConversion))
}

func TestConvert_DetectionErrorsAreSynchronous(t *testing.T) {
	tr := NewVersionTransformer()

	_, err := tr.Convert(strings.NewReader(`<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1">`),
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.True(t, IsKind(err, KindSchemaVersionMissing))

	_, err = tr.Convert(strings.NewReader(`<epcis:EPCISDocument schemaVersion="9.9">`),
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.True(t, IsKind(err, KindUnsupportedVersion))
}

func TestConvert_ProblemResponseInStream(t *testing.T) {
	// Truncated XML: detection succeeds on the prefix, the stage fails while
	// parsing events, and the output carries a problem response.
	broken := `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="2.0"><EPCISBody><EventList><ObjectEvent><eventTime>`
	tr := NewVersionTransformer()

	got := convertAll(t, tr, broken,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.Contains(t, got, `"type":"epcisException:malformed_input"`)
	assert.Contains(t, got, `"status":400`)

	got = convertAll(t, tr, broken,
		NewConversion(epcis.MediaXML, epcis.MediaXML, epcis.Version1_2))
	assert.Contains(t, got, `<epcisException:ProblemResponseBody`)
}

type rejectAllValidator struct{}

func (rejectAllValidator) ValidateEvent(epcis.MediaType, []byte) error {
	return fmt.Errorf("nothing is ever valid")
}

func TestConvert_ValidationFailureInStream(t *testing.T) {
	tr := NewVersionTransformer(WithValidator(rejectAllValidator{}))
	got := convertAll(t, tr, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.Contains(t, got, `"type":"epcisException:validation_failure"`)
}

func TestConvert_MapperHook(t *testing.T) {
	base := NewVersionTransformer()
	derived := base.MapWith(func(ev *event.Event) (*event.Event, error) {
		if ev.Kind == epcis.AssociationEvent {
			return nil, nil // drop
		}
		ev.Fields = append(ev.Fields, event.Field{
			Name: "example:stamped", Value: event.String("yes"),
		})
		return ev, nil
	})

	got := convertAll(t, derived, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.Contains(t, got, `"example:stamped":"yes"`)
	assert.NotContains(t, got, "AssociationEvent")

	// The base transformer is unaffected.
	got = convertAll(t, base, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.NotContains(t, got, "stamped")
	assert.Contains(t, got, `"type":"AssociationEvent"`)
}

func TestConvert_MapperErrorBecomesProblem(t *testing.T) {
	tr := NewVersionTransformer().MapWith(func(*event.Event) (*event.Event, error) {
		return nil, fmt.Errorf("mapper exploded")
	})
	got := convertAll(t, tr, xml20Doc,
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	assert.Contains(t, got, `"type":"epcisException:mapping_failure"`)
	assert.Contains(t, got, "mapper exploded")
}

func TestPerformConversion_SingleEvent(t *testing.T) {
	single := `<ObjectEvent><eventTime>2021-04-01T10:10:00.000Z</eventTime><eventTimeZoneOffset>+02:00</eventTimeZoneOffset><action>OBSERVE</action></ObjectEvent>`
	tr := NewVersionTransformer()
	out, err := tr.PerformConversion(strings.NewReader(single),
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0,
			WithFromVersion(epcis.Version2_0)))
	require.NoError(t, err)
	defer out.Close()
	b, err := io.ReadAll(out)
	require.NoError(t, err)

	// A bare event in yields a bare event out, no document envelope.
	assert.Equal(t, `{"type":"ObjectEvent","eventTime":"2021-04-01T10:10:00.000Z","eventTimeZoneOffset":"+02:00","action":"OBSERVE"}`, string(b))
}

func TestConvert_EarlyConsumerClose(t *testing.T) {
	// A consumer that stops reading must not wedge the producer; closing the
	// stream releases it through pipe back-pressure.
	big := strings.Builder{}
	big.WriteString(`<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="2.0"><EPCISBody><EventList>`)
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&big, `<ObjectEvent><eventTime>2021-04-01T10:10:00.000Z</eventTime><eventTimeZoneOffset>+02:00</eventTimeZoneOffset><eventID>urn:uuid:%d</eventID><action>OBSERVE</action></ObjectEvent>`, i)
	}
	big.WriteString(`</EventList></EPCISBody></epcis:EPCISDocument>`)

	tr := NewVersionTransformer(WithPipeBuffer(2))
	out, err := tr.Convert(strings.NewReader(big.String()),
		NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	require.NoError(t, err)

	buf := make([]byte, 256)
	_, err = out.Read(buf)
	require.NoError(t, err)
	require.NoError(t, out.Close())
}

type closeTrackingReader struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (r *closeTrackingReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *closeTrackingReader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func TestConvert_EarlyConsumerCloseCascadesUpstream(t *testing.T) {
	// A 1.2 input converted to JSON runs two stages (version rewrite, then
	// XML→JSON) joined by a pipe. Closing the final stream must cascade all
	// the way back: every worker unblocks and the input stream is released.
	big := strings.Builder{}
	big.WriteString(`<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="1.2"><EPCISBody><EventList>`)
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&big, `<ObjectEvent><eventTime>2020-01-15T00:00:00.000Z</eventTime><eventTimeZoneOffset>+01:00</eventTimeZoneOffset><epcList><epc>urn:epc:id:sgtin:%d</epc></epcList><action>OBSERVE</action></ObjectEvent>`, i)
	}
	big.WriteString(`</EventList></EPCISBody></epcis:EPCISDocument>`)

	in := &closeTrackingReader{Reader: strings.NewReader(big.String())}
	tr := NewVersionTransformer(WithPipeBuffer(1))
	out, err := tr.Convert(in, NewConversion(epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = out.Read(buf)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	assert.Eventually(t, in.Closed, 2*time.Second, 10*time.Millisecond,
		"closing the output must release the input through every stage")
}

func TestConvert_WithPinnedFromVersion(t *testing.T) {
	tr := NewVersionTransformer()
	got := convertAll(t, tr, xml12Doc,
		NewConversion(epcis.MediaXML, epcis.MediaXML, epcis.Version2_0,
			WithFromVersion(epcis.Version1_2)))
	assert.Contains(t, got, `schemaVersion="2.0"`)
	assert.NotContains(t, got, "baseExtension")
}
