package xmlconv

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/event"
)

const doc20 = `<?xml version="1.0" encoding="UTF-8"?>
<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1"
    xmlns:example="https://ns.example.com/epcis"
    xmlns:cbvmda="urn:epcglobal:cbv:mda"
    schemaVersion="2.0" creationDate="2021-03-08T10:00:00.000Z">
  <EPCISHeader><StandardBusinessDocumentHeader>skipped</StandardBusinessDocumentHeader></EPCISHeader>
  <EPCISBody>
    <EventList>
      <ObjectEvent>
        <eventTime>2021-04-01T10:10:16.123Z</eventTime>
        <eventTimeZoneOffset>+02:00</eventTimeZoneOffset>
        <epcList>
          <epc>urn:epc:id:sgtin:0614141.107346.2017</epc>
          <epc>urn:epc:id:sgtin:0614141.107346.2018</epc>
        </epcList>
        <action>OBSERVE</action>
        <bizStep>shipping</bizStep>
        <readPoint><id>urn:epc:id:sgln:0614141.07346.1234</id></readPoint>
        <bizTransactionList>
          <bizTransaction type="po">http://transaction.acme.com/po/12345678</bizTransaction>
        </bizTransactionList>
        <quantityList>
          <quantityElement>
            <epcClass>urn:epc:class:lgtin:4012345.012345.998877</epcClass>
            <quantity>200.50</quantity>
            <uom>KGM</uom>
          </quantityElement>
        </quantityList>
        <sensorElementList>
          <sensorElement>
            <sensorMetadata time="2019-04-02T13:05:00.000Z" deviceID="urn:epc:id:giai:4000001.111"/>
            <sensorReport type="Temperature" value="26.0" uom="CEL"/>
            <sensorReport type="Humidity" value="12.1" uom="A93"/>
          </sensorElement>
        </sensorElementList>
        <ilmd><cbvmda:lotNumber>LOT123</cbvmda:lotNumber></ilmd>
        <example:myField example:nested="x">abc</example:myField>
      </ObjectEvent>
      <AggregationEvent>
        <eventTime>2021-04-01T11:00:00.000Z</eventTime>
        <eventTimeZoneOffset>+02:00</eventTimeZoneOffset>
        <parentID>urn:epc:id:sscc:0614141.1234567890</parentID>
        <childEPCs><epc>urn:epc:id:sgtin:0614141.107346.2019</epc></childEPCs>
        <action>ADD</action>
      </AggregationEvent>
    </EventList>
  </EPCISBody>
</epcis:EPCISDocument>`

func TestReader_Envelope(t *testing.T) {
	r := NewReader(strings.NewReader(doc20))
	doc, err := r.ReadDocument()
	require.NoError(t, err)

	assert.Equal(t, "2.0", doc.SchemaVersion)
	assert.Equal(t, "2021-03-08T10:00:00.000Z", doc.CreationDate)
	assert.False(t, doc.SingleEvent)

	p, ok := doc.Namespaces.PrefixFor("https://ns.example.com/epcis")
	require.True(t, ok)
	assert.Equal(t, "example", p)
	u, ok := doc.Namespaces.URIFor("cbvmda")
	require.True(t, ok)
	assert.Equal(t, "urn:epcglobal:cbv:mda", u)
	assert.Panics(t, func() { doc.Namespaces.Add("late", "https://late.example.com") })
}

func TestReader_CanonicalEventShape(t *testing.T) {
	r := NewReader(strings.NewReader(doc20))
	_, err := r.ReadDocument()
	require.NoError(t, err)

	ev, err := r.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, epcis.ObjectEvent, ev.Kind)

	get := func(name string) event.Node {
		v, ok := ev.Get(name)
		require.True(t, ok, "field %s", name)
		return v
	}

	epcList := get("epcList")
	require.Equal(t, event.KindList, epcList.Kind)
	require.Len(t, epcList.List, 2)
	assert.Equal(t, "urn:epc:id:sgtin:0614141.107346.2017", epcList.List[0].Text)

	bt := get("bizTransactionList")
	require.Equal(t, event.KindList, bt.Kind)
	require.Len(t, bt.List, 1)
	assert.Equal(t, []event.Field{
		{Name: "type", Value: event.String("po")},
		{Name: "bizTransaction", Value: event.String("http://transaction.acme.com/po/12345678")},
	}, bt.List[0].Bag)

	q := get("quantityList").List[0]
	qty, ok := bagField(q, "quantity")
	require.True(t, ok)
	assert.Equal(t, event.KindNumber, qty.Kind)
	assert.Equal(t, "200.50", qty.Text, "lexical form survives")

	rp := get("readPoint")
	require.Equal(t, event.KindBag, rp.Kind)
	assert.Equal(t, "id", rp.Bag[0].Name)

	sel := get("sensorElementList")
	require.Equal(t, event.KindList, sel.Kind)
	se := sel.List[0]
	meta, _ := bagField(se, "sensorMetadata")
	assert.Equal(t, []event.Field{
		{Name: "time", Value: event.String("2019-04-02T13:05:00.000Z")},
		{Name: "deviceID", Value: event.String("urn:epc:id:giai:4000001.111")},
	}, meta.Bag)
	reports, _ := bagField(se, "sensorReport")
	require.Equal(t, event.KindList, reports.Kind)
	require.Len(t, reports.List, 2)
	assert.Equal(t, event.Number("26.0"), reports.List[0].Bag[1].Value)

	ilmd := get("ilmd")
	assert.Equal(t, "cbvmda:lotNumber", ilmd.Bag[0].Name)

	custom := get("example:myField")
	assert.Equal(t, []event.Field{
		{Name: "@example:nested", Value: event.String("x")},
		{Name: "#text", Value: event.String("abc")},
	}, custom.Bag)

	ev2, err := r.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, epcis.AggregationEvent, ev2.Kind)
	children, ok := ev2.Get("childEPCs")
	require.True(t, ok)
	assert.Equal(t, event.KindList, children.Kind)

	_, err = r.NextEvent()
	assert.Equal(t, io.EOF, err)
	_, err = r.NextEvent()
	assert.Equal(t, io.EOF, err)
}

func TestReader_12WrapperFieldsSurvive(t *testing.T) {
	const doc12 = `<?xml version="1.0"?>
<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="1.2" creationDate="2020-01-15T10:00:00.000Z">
 <EPCISBody><EventList>
  <ObjectEvent>
    <eventTime>2020-01-15T00:00:00.000Z</eventTime>
    <baseExtension><eventID>urn:uuid:1</eventID></baseExtension>
    <epcList><epc>urn:epc:id:sgtin:1</epc></epcList>
    <action>OBSERVE</action>
    <extension>
      <quantityList><quantityElement><epcClass>urn:epc:class:lgtin:1</epcClass><quantity>7</quantity></quantityElement></quantityList>
      <extension><persistentDisposition><set>urn:x:set</set></persistentDisposition></extension>
    </extension>
  </ObjectEvent>
  <extension>
    <TransformationEvent>
      <eventTime>2020-01-15T01:00:00.000Z</eventTime>
      <eventTimeZoneOffset>+01:00</eventTimeZoneOffset>
      <inputEPCList><epc>urn:epc:id:sgtin:2</epc></inputEPCList>
    </TransformationEvent>
  </extension>
 </EventList></EPCISBody>
</epcis:EPCISDocument>`

	r := NewReader(strings.NewReader(doc12))
	doc, err := r.ReadDocument()
	require.NoError(t, err)
	assert.Equal(t, "1.2", doc.SchemaVersion)

	ev, err := r.NextEvent()
	require.NoError(t, err)
	base, ok := ev.Get(epcis.BaseExtension)
	require.True(t, ok, "wrapper fields survive parsing untouched")
	assert.Equal(t, "eventID", base.Bag[0].Name)
	ext, ok := ev.Get(epcis.ExtensionElem)
	require.True(t, ok)
	inner, ok := bagField(ext, epcis.ExtensionElem)
	require.True(t, ok)
	pd, ok := bagField(inner, "persistentDisposition")
	require.True(t, ok)
	set, ok := bagField(pd, "set")
	require.True(t, ok)
	assert.Equal(t, event.KindList, set.Kind, "set coalesces to a list even when single")

	// The EventList-level extension frame is entered transparently.
	ev2, err := r.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, epcis.TransformationEvent, ev2.Kind)

	_, err = r.NextEvent()
	assert.Equal(t, io.EOF, err)
}

func TestReader_SingleEventRoot(t *testing.T) {
	const single = `<ObjectEvent>
  <eventTime>2021-04-01T10:10:00.000Z</eventTime>
  <eventTimeZoneOffset>+02:00</eventTimeZoneOffset>
  <action>OBSERVE</action>
</ObjectEvent>`

	r := NewReader(strings.NewReader(single))
	doc, err := r.ReadDocument()
	require.NoError(t, err)
	assert.True(t, doc.SingleEvent)

	ev, err := r.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, epcis.ObjectEvent, ev.Kind)

	_, err = r.NextEvent()
	assert.Equal(t, io.EOF, err)
}

func TestReader_EmptyEventList(t *testing.T) {
	const empty = `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="2.0"><EPCISBody><EventList></EventList></EPCISBody></epcis:EPCISDocument>`
	r := NewReader(strings.NewReader(empty))
	_, err := r.ReadDocument()
	require.NoError(t, err)
	_, err = r.NextEvent()
	assert.Equal(t, io.EOF, err)
}

func TestReader_BadRoot(t *testing.T) {
	r := NewReader(strings.NewReader(`<NotAnEPCISThing/>`))
	_, err := r.ReadDocument()
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "NotAnEPCISThing", perr.Name)
}

func TestReader_TimeCanonicalisation(t *testing.T) {
	const doc = `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="2.0"><EPCISBody><EventList>
<ObjectEvent><eventTime>2021-04-01T12:10:16+02:00</eventTime><eventTimeZoneOffset>+02:00</eventTimeZoneOffset><action>OBSERVE</action></ObjectEvent>
</EventList></EPCISBody></epcis:EPCISDocument>`
	r := NewReader(strings.NewReader(doc))
	_, err := r.ReadDocument()
	require.NoError(t, err)
	ev, err := r.NextEvent()
	require.NoError(t, err)
	v, _ := ev.Get("eventTime")
	assert.Equal(t, "2021-04-01T12:10:16.000+02:00", v.Text)
}

func bagField(n event.Node, name string) (event.Node, bool) {
	for _, f := range n.Bag {
		if f.Name == name {
			return f.Value, true
		}
	}
	return event.Node{}, false
}
