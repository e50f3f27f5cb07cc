package epcisconv

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/openepcis/epcisconv/epcis"
)

// ProblemResponseBody is the structured error document written into the
// output stream when a failure occurs after streaming has begun. The
// consumer of a conversion therefore always reads either a valid document
// or a parseable problem response.
type ProblemResponseBody struct {
	Type     string `json:"type" xml:"type"`
	Title    string `json:"title" xml:"title"`
	Status   int    `json:"status" xml:"status"`
	Detail   string `json:"detail,omitempty" xml:"detail,omitempty"`
	Instance string `json:"instance,omitempty" xml:"instance,omitempty"`
}

// problemTypeBase prefixes the per-kind type URI.
const problemTypeBase = "epcisException:"

// ProblemFromError maps a conversion error to its problem response.
func ProblemFromError(err error) ProblemResponseBody {
	kind := KindOf(err)
	status := 500
	title := "Conversion failed"
	switch kind {
	case KindSchemaVersionMissing, KindUnsupportedVersion, KindMalformedInput:
		status = 400
		title = "Invalid EPCIS document"
	case KindUnsupportedConversion:
		status = 400
		title = "Unsupported conversion"
	case KindValidationFailure:
		status = 400
		title = "EPCIS document validation failed"
	case KindMappingFailure:
		status = 500
		title = "Event mapping failed"
	}
	return ProblemResponseBody{
		Type:     problemTypeBase + string(kind),
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: "urn:uuid:" + uuid.NewString(),
	}
}

// WriteJSON writes the problem response as a JSON document.
func (p ProblemResponseBody) WriteJSON(w io.Writer) error {
	b, err := j.Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteXML writes the problem response as a namespaced XML document.
func (p ProblemResponseBody) WriteXML(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<epcisException:ProblemResponseBody xmlns:epcisException="` +
		epcis.XMLNamespace + `">`)
	writeProblemElem(&buf, "type", p.Type)
	writeProblemElem(&buf, "title", p.Title)
	buf.WriteString("<status>")
	buf.WriteString(strconv.Itoa(p.Status))
	buf.WriteString("</status>")
	if p.Detail != "" {
		writeProblemElem(&buf, "detail", p.Detail)
	}
	if p.Instance != "" {
		writeProblemElem(&buf, "instance", p.Instance)
	}
	buf.WriteString("</epcisException:ProblemResponseBody>")
	_, err := w.Write(buf.Bytes())
	return err
}

// Write serialises the problem response in the media type of the output
// document.
func (p ProblemResponseBody) Write(w io.Writer, media epcis.MediaType) error {
	if media == epcis.MediaXML {
		return p.WriteXML(w)
	}
	return p.WriteJSON(w)
}

func writeProblemElem(buf *bytes.Buffer, name, value string) {
	buf.WriteString("<" + name + ">")
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString("</" + name + ">")
}
