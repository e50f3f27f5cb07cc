// Package token is the pull-token substrate of the JSON converter side. It
// exposes JSON input as a flat token stream with explicit key tokens, plus a
// value reader that drains one subtree into the generic event node model.
package token

import (
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	"github.com/openepcis/epcisconv/event"
)

// Kind enumerates token kinds.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token is one token of the input stream.
type Token struct {
	Kind   Kind
	String string // key and string tokens
	Number string // number tokens, lexical form
	Bool   bool
}

// Source is a pull token source. NextToken returns io.EOF at end of input.
type Source interface {
	NextToken() (Token, error)
}

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
}

type source struct {
	dec   *j.Decoder
	stack []frame
}

// NewReader wraps an io.Reader into a JSON token Source backed by
// goccy/go-json.
func NewReader(r io.Reader) Source {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec}
}

func (s *source) settle() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

func (s *source) NextToken() (Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			return Token{}, io.EOF
		}
		return Token{}, err
	}
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
			return Token{Kind: KindBeginObject}, nil
		case '}':
			if n := len(s.stack); n > 0 {
				s.stack = s.stack[:n-1]
			}
			s.settle()
			return Token{Kind: KindEndObject}, nil
		case '[':
			s.stack = append(s.stack, frame{kind: kindArray})
			return Token{Kind: KindBeginArray}, nil
		case ']':
			if n := len(s.stack); n > 0 {
				s.stack = s.stack[:n-1]
			}
			s.settle()
			return Token{Kind: KindEndArray}, nil
		}
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				top.expectingKey = false
				return Token{Kind: KindKey, String: v}, nil
			}
		}
		s.settle()
		return Token{Kind: KindString, String: v}, nil
	case bool:
		s.settle()
		return Token{Kind: KindBool, Bool: v}, nil
	case j.Number:
		s.settle()
		return Token{Kind: KindNumber, Number: string(v)}, nil
	case float64:
		s.settle()
		return Token{Kind: KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case nil:
		s.settle()
		return Token{Kind: KindNull}, nil
	}
	s.settle()
	return Token{Kind: KindNull}, nil
}

// ReadNode consumes exactly one JSON value from src and returns it as an
// event node. Object key order is preserved. JSON null becomes an empty
// string scalar; EPCIS payloads do not distinguish the two.
func ReadNode(src Source) (event.Node, error) {
	tok, err := src.NextToken()
	if err != nil {
		return event.Node{}, err
	}
	return ReadNodeFrom(src, tok)
}

// ReadNodeFrom is ReadNode for callers that have already pulled the first
// token of the value, typically to distinguish it from a container end.
func ReadNodeFrom(src Source, tok Token) (event.Node, error) {
	switch tok.Kind {
	case KindString:
		return event.String(tok.String), nil
	case KindNumber:
		return event.Number(tok.Number), nil
	case KindBool:
		return event.Bool(tok.Bool), nil
	case KindNull:
		return event.String(""), nil
	case KindBeginObject:
		bag := event.Node{Kind: event.KindBag}
		for {
			t, err := src.NextToken()
			if err != nil {
				return event.Node{}, err
			}
			if t.Kind == KindEndObject {
				return bag, nil
			}
			if t.Kind != KindKey {
				return event.Node{}, fmt.Errorf("token: expected object key, got kind %d", t.Kind)
			}
			val, err := ReadNode(src)
			if err != nil {
				return event.Node{}, err
			}
			bag.Bag = append(bag.Bag, event.Field{Name: t.String, Value: val})
		}
	case KindBeginArray:
		list := event.Node{Kind: event.KindList}
		for {
			t, err := src.NextToken()
			if err != nil {
				return event.Node{}, err
			}
			if t.Kind == KindEndArray {
				return list, nil
			}
			item, err := ReadNodeFrom(src, t)
			if err != nil {
				return event.Node{}, err
			}
			list.List = append(list.List, item)
		}
	default:
		return event.Node{}, fmt.Errorf("token: unexpected token kind %d", tok.Kind)
	}
}

// SkipValue consumes exactly one JSON value from src, discarding it.
func SkipValue(src Source) error {
	_, err := ReadNode(src)
	return err
}
