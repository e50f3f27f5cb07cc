package epcisconv

import (
	"bytes"
	"io"
	"strings"

	"github.com/openepcis/epcisconv/epcis"
)

// prescanSize is the number of bytes inspected for the schemaVersion
// marker.
const prescanSize = 1024

// Detection is the result of the version prescan: the classified media type
// and version, plus the consumed prefix so the caller can reconstitute a
// logically identical stream.
type Detection struct {
	Media   epcis.MediaType
	Version epcis.Version
	Prefix  []byte
}

// Restore returns a reader that replays the consumed prefix followed by the
// remainder of r. The prefix bytes are never read twice from r. When r is an
// io.Closer, closing the returned reader closes r, so a cancelled pipeline
// can release the input stream.
func (d Detection) Restore(r io.Reader) io.Reader {
	mr := io.MultiReader(bytes.NewReader(d.Prefix), r)
	if c, ok := r.(io.Closer); ok {
		return &restoredReader{Reader: mr, c: c}
	}
	return mr
}

type restoredReader struct {
	io.Reader
	c io.Closer
}

func (r *restoredReader) Close() error { return r.c.Close() }

// Detect reads up to 1024 bytes from r and classifies the document. The
// prefix is scanned as UTF-8 text for the schemaVersion marker: the XML
// attribute form with single or double quotes, or the whitespace-normalised
// JSON member form. Errors: schema_version_missing when no marker is found,
// unsupported_version for any version outside {1.2, 2.0}.
func Detect(r io.Reader) (Detection, error) {
	buf := make([]byte, prescanSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Detection{}, Wrap(KindIOFailure, err, "reading document prefix")
	}
	prefix := buf[:n]
	text := string(prefix)

	if !strings.Contains(text, epcis.SchemaVersionAttr) {
		return Detection{}, Errf(KindSchemaVersionMissing,
			"unable to detect EPCIS schemaVersion for given document")
	}

	d := Detection{Prefix: prefix, Media: sniffMedia(prefix)}
	switch {
	case hasVersionMarker(text, "1.2"):
		d.Version = epcis.Version1_2
	case hasVersionMarker(text, "2.0"):
		d.Version = epcis.Version2_0
	default:
		return Detection{}, Errf(KindUnsupportedVersion,
			"document contains unsupported EPCIS schema version")
	}
	return d, nil
}

func hasVersionMarker(text, version string) bool {
	if strings.Contains(text, epcis.SchemaVersionAttr+`="`+version+`"`) ||
		strings.Contains(text, epcis.SchemaVersionAttr+`='`+version+`'`) {
		return true
	}
	squeezed := strings.ReplaceAll(text, " ", "")
	return strings.Contains(squeezed, `"`+epcis.SchemaVersionAttr+`":"`+version+`"`)
}

func sniffMedia(prefix []byte) epcis.MediaType {
	for _, b := range prefix {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '<':
			return epcis.MediaXML
		default:
			return epcis.MediaJSONLD
		}
	}
	return epcis.MediaUnknown
}
