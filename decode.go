package binres

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ManifestEncoder is the token sink DecodeXML renders into. *xml.Encoder
// satisfies it.
type ManifestEncoder interface {
	EncodeToken(t xml.Token) error
	Flush() error
}

// DecodeXML renders a compiled xml chunk back into textual form. It is the
// inverse of CompileXML up to formatting: resolved references and flag masks
// stay numeric.
func DecodeXML(c *Chunk, enc ManifestEncoder) error {
	if c.Kind != chunkXml {
		return fmt.Errorf("not an xml chunk: 0x%04x", c.Kind)
	}

	var pool []string
	var resourceIds []uint32
	for _, child := range c.Children {
		var err error
		switch child.Kind {
		case chunkStringPool:
			pool = child.Strings
		case chunkResourceMap:
			resourceIds = child.ResourceIds
		case chunkXmlNsStart, chunkXmlNsEnd:
			// The encoder derives xmlns declarations from attribute spaces.
		case chunkXmlTagStart:
			err = encodeStartElement(enc, child, pool, resourceIds)
		case chunkXmlTagEnd:
			var name, space string
			if name, err = poolString(pool, child.EndElement.Name); err == nil {
				space, err = poolString(pool, child.EndElement.Namespace)
			}
			if err == nil {
				err = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name, Space: space}})
			}
		default:
			err = fmt.Errorf("unexpected chunk 0x%04x inside xml", child.Kind)
		}
		if err != nil {
			return err
		}
	}
	return enc.Flush()
}

func encodeStartElement(enc ManifestEncoder, c *Chunk, pool []string, resourceIds []uint32) error {
	name, err := poolString(pool, c.StartElement.Name)
	if err != nil {
		return fmt.Errorf("element name: %w", err)
	}
	space, err := poolString(pool, c.StartElement.Namespace)
	if err != nil {
		return fmt.Errorf("element namespace: %w", err)
	}

	tok := xml.StartElement{Name: xml.Name{Local: name, Space: space}}
	for _, a := range c.Attrs {
		// Attributes with a well-known resource id are named through the
		// resource map; obfuscated files drop the matching pool string.
		var attrName string
		if a.Name >= 0 && int(a.Name) < len(resourceIds) {
			attrName = attributeName(resourceIds[a.Name])
		}
		if attrName == "" {
			if attrName, err = poolString(pool, a.Name); err != nil {
				return fmt.Errorf("attribute name: %w", err)
			}
		}
		attrSpace, err := poolString(pool, a.Namespace)
		if err != nil {
			return fmt.Errorf("attribute namespace: %w", err)
		}
		value, err := formatValue(a, pool)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", attrName, err)
		}
		tok.Attr = append(tok.Attr, xml.Attr{
			Name:  xml.Name{Local: attrName, Space: attrSpace},
			Value: value,
		})
	}
	return enc.EncodeToken(tok)
}

// DumpTable writes a textual listing of a resource table chunk: one line per
// entry, grouped by package and type.
func DumpTable(c *Chunk, w io.Writer) error {
	if c.Kind != chunkTable {
		return fmt.Errorf("not a table chunk: 0x%04x", c.Kind)
	}

	var values []string
	for _, child := range c.Children {
		switch child.Kind {
		case chunkStringPool:
			values = child.Strings
		case chunkTablePackage:
			if err := dumpTablePackage(w, child, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpTablePackage(w io.Writer, pkg *Chunk, values []string) error {
	p, err := newTablePackage(uint8(pkg.Package.ID), pkg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "package 0x%02x %s\n", p.id, pkg.Package.Name)
	for _, chunk := range p.chunks {
		if chunk.Kind != chunkTableType {
			continue
		}
		typeName := ""
		if n := int(chunk.TypeID) - 1; n < len(p.types) {
			typeName = p.types[n]
		}
		fmt.Fprintf(w, "  type %d %s density %d\n", chunk.TypeID, typeName, chunk.Config.ScreenType.Density)
		for i, e := range chunk.Entries {
			if e == nil {
				continue
			}
			key := ""
			if int(e.Key) < len(p.keys) {
				key = p.keys[e.Key]
			}
			ref := NewResTableRef(p.id, chunk.TypeID, uint16(i))
			if e.IsComplex() {
				fmt.Fprintf(w, "    %s %s: <complex, %d values>\n", ref, key, len(e.Map))
				continue
			}
			v, err := formatValue(ResXMLAttribute{RawValue: -1, TypedValue: e.Value}, values)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "    %s %s = %s\n", ref, key, v)
		}
	}
	return nil
}

// attributeName maps a well-known resource id back to its attribute name,
// empty when the id is not in the dictionary.
func attributeName(resID uint32) string {
	for _, info := range attributes {
		if info.resID == resID {
			return info.name
		}
	}
	return ""
}

func poolString(pool []string, idx int32) (string, error) {
	if idx < 0 {
		return "", nil
	}
	if int(idx) >= len(pool) {
		return "", fmt.Errorf("string pool index %d out of range", idx)
	}
	return pool[idx], nil
}

func formatValue(a ResXMLAttribute, pool []string) (string, error) {
	data := a.TypedValue.Data
	switch a.TypedValue.DataType {
	case DataTypeString:
		idx := a.RawValue
		if idx < 0 {
			idx = int32(data)
		}
		return poolString(pool, idx)
	case DataTypeIntBool:
		return strconv.FormatBool(data != 0), nil
	case DataTypeIntHex:
		return fmt.Sprintf("0x%x", data), nil
	case DataTypeFloat:
		f := math.Float32frombits(data)
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case DataTypeReference:
		return fmt.Sprintf("@0x%08x", data), nil
	default:
		return strconv.FormatInt(int64(int32(data)), 10), nil
	}
}
