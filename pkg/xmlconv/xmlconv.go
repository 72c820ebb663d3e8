// Package xmlconv converts JSON documents to XML bodies for signing.
//
// Object keys become child elements in document order, arrays repeat their
// parent element, the "@" key holds attributes and the "#" key holds text.
// The output has no XML declaration and is indented with four spaces.
package xmlconv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

const (
	AttributeKey = "@"
	TextKey      = "#"
)

// ErrInvalidDocument is returned for JSON that cannot be expressed as XML.
var ErrInvalidDocument = errors.New("invalid document")

type kind int

const (
	kindNull kind = iota
	kindScalar
	kindObject
	kindArray
)

type member struct {
	key   string
	value value
}

type value struct {
	kind    kind
	scalar  string
	members []member
	items   []value
}

// ToXML renders data under an element named root.
func ToXML(root string, data []byte) (string, error) {
	if !validName(root) {
		return "", fmt.Errorf("%w: invalid root element name %q", ErrInvalidDocument, root)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decode(dec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("%w: trailing data after document", ErrInvalidDocument)
	}
	if v.kind == kindArray {
		return "", fmt.Errorf("%w: top level value must not be an array", ErrInvalidDocument)
	}

	doc := etree.NewDocument()
	el := doc.CreateElement(root)
	if err := fill(el, v); err != nil {
		return "", err
	}
	doc.Indent(4)
	out, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(out, "\n"), nil
}

// FromValue renders an already decoded JSON value. Map keys are emitted in
// sorted order since Go maps carry none.
func FromValue(root string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return ToXML(root, data)
}

func decode(dec *json.Decoder) (value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var v value
			v.kind = kindObject
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value{}, err
				}
				key, _ := keyTok.(string)
				child, err := decode(dec)
				if err != nil {
					return value{}, err
				}
				v.members = append(v.members, member{key: key, value: child})
			}
			_, err := dec.Token()
			return v, err
		case '[':
			var v value
			v.kind = kindArray
			for dec.More() {
				item, err := decode(dec)
				if err != nil {
					return value{}, err
				}
				v.items = append(v.items, item)
			}
			_, err := dec.Token()
			return v, err
		}
		return value{}, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return value{kind: kindNull}, nil
	case json.Number:
		return value{kind: kindScalar, scalar: t.String()}, nil
	case bool:
		return value{kind: kindScalar, scalar: fmt.Sprint(t)}, nil
	case string:
		return value{kind: kindScalar, scalar: t}, nil
	}
	return value{}, fmt.Errorf("unexpected token %v", tok)
}

func fill(el *etree.Element, v value) error {
	switch v.kind {
	case kindNull:
	case kindScalar:
		el.SetText(v.scalar)
	case kindObject:
		for _, m := range v.members {
			switch m.key {
			case AttributeKey:
				if err := attributes(el, m.value); err != nil {
					return err
				}
			case TextKey:
				if m.value.kind == kindObject || m.value.kind == kindArray {
					return fmt.Errorf("%w: %q of <%s> must be a scalar", ErrInvalidDocument, TextKey, el.Tag)
				}
				el.CreateText(m.value.scalar)
			default:
				if err := appendElement(el, m.key, m.value); err != nil {
					return err
				}
			}
		}
	case kindArray:
		return fmt.Errorf("%w: nested array in <%s>", ErrInvalidDocument, el.Tag)
	}
	return nil
}

func appendElement(parent *etree.Element, name string, v value) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q is not an element name", ErrInvalidDocument, name)
	}
	if v.kind == kindArray {
		for _, item := range v.items {
			if item.kind == kindArray {
				if err := appendElement(parent, name, item); err != nil {
					return err
				}
				continue
			}
			if err := fill(parent.CreateElement(name), item); err != nil {
				return err
			}
		}
		return nil
	}
	return fill(parent.CreateElement(name), v)
}

func attributes(el *etree.Element, v value) error {
	if v.kind != kindObject {
		return fmt.Errorf("%w: %q of <%s> must be an object", ErrInvalidDocument, AttributeKey, el.Tag)
	}
	for _, m := range v.members {
		if !validName(m.key) {
			return fmt.Errorf("%w: %q is not an attribute name", ErrInvalidDocument, m.key)
		}
		if m.value.kind == kindObject || m.value.kind == kindArray {
			return fmt.Errorf("%w: attribute %q must be a scalar", ErrInvalidDocument, m.key)
		}
		el.CreateAttr(m.key, m.value.scalar)
	}
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == ':' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 0x7f:
		case i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}
