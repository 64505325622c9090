package binres

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// attrRecordSize is the fixed on-wire size of one attribute record, doubling
// as the offset from the start-element structure to its first attribute.
const attrRecordSize = 0x0014

type xmlElement struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*xmlElement
}

func parseXMLTree(r io.Reader) (*xmlElement, error) {
	dec := xml.NewDecoder(r)
	var root *xmlElement
	var stack []*xmlElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// CompileXML compiles an XML document into its binary chunk tree. Symbolic
// attribute values (enum and flag names, @-references) are resolved against
// table; a nil table restricts the document to literal values.
func CompileXML(r io.Reader, table *ResourceTable) (*Chunk, error) {
	root, err := parseXMLTree(r)
	if err != nil {
		return nil, err
	}

	// Namespace declarations only count on the root element. Each one opens
	// at the top of the document and closes at the bottom, in prefix order.
	type nsDecl struct{ prefix, uri string }
	var namespaces []nsDecl
	attrs := root.attrs[:0]
	for _, a := range root.attrs {
		if isNamespaceDecl(a) {
			prefix := a.Name.Local
			if a.Name.Space == "" {
				// xmlns="uri" declares the unnamed default namespace.
				prefix = ""
			}
			namespaces = append(namespaces, nsDecl{prefix, a.Value})
			continue
		}
		attrs = append(attrs, a)
	}
	root.attrs = attrs
	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].prefix < namespaces[j].prefix })

	if err := resolveTreeValues(root, table); err != nil {
		return nil, err
	}

	pool := NewStringPoolBuilder()
	for _, ns := range namespaces {
		if ns.prefix != "" {
			pool.AddString(ns.prefix)
		}
		pool.AddString(ns.uri)
	}
	if err := collectStrings(root, pool); err != nil {
		return nil, err
	}
	strings, resourceMap := pool.Build()

	prefixID := func(ns nsDecl) int32 {
		if ns.prefix == "" {
			return -1
		}
		return pool.ID(ns.prefix)
	}

	children := []*Chunk{
		{Kind: chunkStringPool, Strings: strings},
		{Kind: chunkResourceMap, ResourceIds: resourceMap},
	}
	for _, ns := range namespaces {
		children = append(children, &Chunk{
			Kind:      chunkXmlNsStart,
			Node:      defaultNodeHeader(),
			Namespace: ResXMLNamespace{Prefix: prefixID(ns), URI: pool.ID(ns.uri)},
		})
	}
	children, err = emitElement(children, pool, root)
	if err != nil {
		return nil, err
	}
	for i := len(namespaces) - 1; i >= 0; i-- {
		ns := namespaces[i]
		children = append(children, &Chunk{
			Kind:      chunkXmlNsEnd,
			Node:      defaultNodeHeader(),
			Namespace: ResXMLNamespace{Prefix: prefixID(ns), URI: pool.ID(ns.uri)},
		})
	}

	return &Chunk{Kind: chunkXml, Children: children}, nil
}

func resolveTreeValues(el *xmlElement, table *ResourceTable) error {
	for i, a := range el.attrs {
		info, ok := attributeInfo(a.Name.Local)
		if !ok {
			return fmt.Errorf("element <%s>: unsupported attribute %q", el.name.Local, a.Name.Local)
		}
		v, err := resolveAttrValue(table, info, a.Value)
		if err != nil {
			return fmt.Errorf("element <%s>: %w", el.name.Local, err)
		}
		el.attrs[i].Value = v
	}
	for _, child := range el.children {
		if err := resolveTreeValues(child, table); err != nil {
			return err
		}
	}
	return nil
}

func collectStrings(el *xmlElement, pool *StringPoolBuilder) error {
	pool.AddString(el.name.Local)
	for _, a := range el.attrs {
		if err := pool.AddAttribute(a.Name.Local, a.Value); err != nil {
			return fmt.Errorf("element <%s>: %w", el.name.Local, err)
		}
	}
	for _, child := range el.children {
		if err := collectStrings(child, pool); err != nil {
			return err
		}
	}
	return nil
}

func emitElement(out []*Chunk, pool *StringPoolBuilder, el *xmlElement) ([]*Chunk, error) {
	attrs := make([]xml.Attr, len(el.attrs))
	copy(attrs, el.attrs)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name.Local < attrs[j].Name.Local })

	start := ResXMLStartElement{
		Namespace:      -1,
		Name:           pool.ID(el.name.Local),
		AttributeStart: attrRecordSize,
		AttributeSize:  attrRecordSize,
		AttributeCount: uint16(len(attrs)),
	}
	compiled := make([]ResXMLAttribute, 0, len(attrs))
	for i, a := range attrs {
		attr, err := compileAttr(pool, a.Name.Space, a.Name.Local, a.Value)
		if err != nil {
			return nil, fmt.Errorf("element <%s>: %w", el.name.Local, err)
		}
		compiled = append(compiled, attr)
		switch a.Name.Local {
		case "id":
			start.IDIndex = uint16(i + 1)
		case "class":
			start.ClassIndex = uint16(i + 1)
		case "style":
			start.StyleIndex = uint16(i + 1)
		}
	}

	out = append(out, &Chunk{
		Kind:         chunkXmlTagStart,
		Node:         defaultNodeHeader(),
		StartElement: start,
		Attrs:        compiled,
	})
	var err error
	for _, child := range el.children {
		out, err = emitElement(out, pool, child)
		if err != nil {
			return nil, err
		}
	}
	out = append(out, &Chunk{
		Kind:       chunkXmlTagEnd,
		Node:       defaultNodeHeader(),
		EndElement: ResXMLEndElement{Namespace: -1, Name: pool.ID(el.name.Local)},
	})
	return out, nil
}
