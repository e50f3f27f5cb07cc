package event

// NamespaceMap collects prefix→URI bindings from the outer document element
// (XML) or the @context (JSON-LD). Once the envelope has been written it is
// frozen; events may only reference prefixes present in it.
type NamespaceMap struct {
	bindings []Binding
	byPrefix map[string]string
	byURI    map[string]string
	frozen   bool
}

// Binding is one prefix→URI pair in declaration order.
type Binding struct {
	Prefix string
	URI    string
}

// NewNamespaceMap returns an empty, unfrozen map.
func NewNamespaceMap() *NamespaceMap {
	return &NamespaceMap{
		byPrefix: map[string]string{},
		byURI:    map[string]string{},
	}
}

// Add registers a binding. Later bindings do not displace an earlier prefix
// or URI. Add panics if the map has been frozen; the envelope writer is the
// last legal writer.
func (m *NamespaceMap) Add(prefix, uri string) {
	if m.frozen {
		panic("event: namespace map is frozen")
	}
	if prefix == "" || uri == "" {
		return
	}
	if _, ok := m.byPrefix[prefix]; ok {
		return
	}
	if _, ok := m.byURI[uri]; ok {
		return
	}
	m.bindings = append(m.bindings, Binding{Prefix: prefix, URI: uri})
	m.byPrefix[prefix] = uri
	m.byURI[uri] = prefix
}

// Freeze marks the map immutable.
func (m *NamespaceMap) Freeze() { m.frozen = true }

// PrefixFor returns the prefix bound to uri.
func (m *NamespaceMap) PrefixFor(uri string) (string, bool) {
	p, ok := m.byURI[uri]
	return p, ok
}

// URIFor returns the URI bound to prefix.
func (m *NamespaceMap) URIFor(prefix string) (string, bool) {
	u, ok := m.byPrefix[prefix]
	return u, ok
}

// All returns the bindings in declaration order. Callers must not mutate
// the returned slice.
func (m *NamespaceMap) All() []Binding { return m.bindings }

// Len returns the number of bindings.
func (m *NamespaceMap) Len() int { return len(m.bindings) }
