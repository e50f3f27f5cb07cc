package epcisconv

import "github.com/openepcis/epcisconv/epcis"

// Conversion describes one requested conversion. It is immutable once
// built; the pipeline never modifies it. Construct with NewConversion.
type Conversion struct {
	fromMedia   epcis.MediaType
	fromVersion epcis.Version // VersionUnknown means autodetect
	toMedia     epcis.MediaType
	toVersion   epcis.Version

	gs1Compliant                 bool
	includeAssociation           bool
	includePersistentDisposition bool
	includeSensorElements        bool
}

// ConversionOpt customises a Conversion.
type ConversionOpt func(*Conversion)

// WithFromVersion pins the input version, skipping autodetection.
func WithFromVersion(v epcis.Version) ConversionOpt {
	return func(c *Conversion) { c.fromVersion = v }
}

// WithoutGS1CompliantDocument lifts the GS1 CBV profile restriction on 1.2
// output.
func WithoutGS1CompliantDocument() ConversionOpt {
	return func(c *Conversion) { c.gs1Compliant = false }
}

// WithoutAssociationEvents drops AssociationEvents from 1.2 output instead
// of deep-nesting them under extension wrappers.
func WithoutAssociationEvents() ConversionOpt {
	return func(c *Conversion) { c.includeAssociation = false }
}

// WithoutPersistentDisposition elides persistentDisposition from 1.2
// output.
func WithoutPersistentDisposition() ConversionOpt {
	return func(c *Conversion) { c.includePersistentDisposition = false }
}

// WithoutSensorElements elides sensorElementList from 1.2 output.
func WithoutSensorElements() ConversionOpt {
	return func(c *Conversion) { c.includeSensorElements = false }
}

// NewConversion builds a conversion request. The input version may be left
// unknown; Convert detects it from the stream. All feature flags default to
// enabled and generateGS1CompliantDocument defaults to true.
func NewConversion(from epcis.MediaType, to epcis.MediaType, toVersion epcis.Version, opts ...ConversionOpt) Conversion {
	c := Conversion{
		fromMedia:                    from,
		toMedia:                      to,
		toVersion:                    toVersion,
		gs1Compliant:                 true,
		includeAssociation:           true,
		includePersistentDisposition: true,
		includeSensorElements:        true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// FromMediaType returns the input media type.
func (c Conversion) FromMediaType() epcis.MediaType { return c.fromMedia }

// FromVersion returns the input version; VersionUnknown until detected.
func (c Conversion) FromVersion() epcis.Version { return c.fromVersion }

// ToMediaType returns the output media type.
func (c Conversion) ToMediaType() epcis.MediaType { return c.toMedia }

// ToVersion returns the output version.
func (c Conversion) ToVersion() epcis.Version { return c.toVersion }

// GenerateGS1CompliantDocument reports whether 1.2 output is constrained to
// the GS1 CBV profile.
func (c Conversion) GenerateGS1CompliantDocument() bool { return c.gs1Compliant }

// IncludeAssociationEvent reports whether AssociationEvents survive into
// 1.2 output.
func (c Conversion) IncludeAssociationEvent() bool { return c.includeAssociation }

// IncludePersistentDisposition reports whether persistentDisposition
// survives into 1.2 output.
func (c Conversion) IncludePersistentDisposition() bool { return c.includePersistentDisposition }

// IncludeSensorElementList reports whether sensorElementList survives into
// 1.2 output.
func (c Conversion) IncludeSensorElementList() bool { return c.includeSensorElements }

// withFromVersion returns a copy with the detected input version filled in.
func (c Conversion) withDetected(v epcis.Version) Conversion {
	c.fromVersion = v
	return c
}

// valid reports whether the (media, version) pair is a defined input or
// output. EPCIS 1.2 has no JSON binding.
func validPair(m epcis.MediaType, v epcis.Version) bool {
	if m == epcis.MediaJSONLD && v == epcis.Version1_2 {
		return false
	}
	return true
}
