/*
Package epcisconv converts EPCIS supply-chain event documents between their
XML and JSON-LD wire representations and between schema versions 1.2 and
2.0, in a single streaming pass.

The entry point is the VersionTransformer:

	t := epcisconv.NewVersionTransformer()
	out, err := t.Convert(in, epcisconv.NewConversion(
		epcis.MediaXML, epcis.MediaJSONLD, epcis.Version2_0))

Convert autodetects the input version from the first kilobyte of the
stream, composes the converter stages the request needs, and returns the
output stream. Events flow through the pipeline one at a time; the full
event list is never materialised. Failures after streaming has begun are
written into the output as a ProblemResponseBody document, so the consumer
always reads either a valid document or a parseable error.

EPCIS 1.2 has no JSON binding; requests to or from the (JSON-LD, 1.2) pair
fail with an unsupported_conversion error.
*/
package epcisconv
