package binres

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Chunk is one record of the binary container format, tagged by Kind. It is
// the single in-memory representation flowing between the parser, the writer
// and the compiler; nested records are owned outright through Children.
type Chunk struct {
	Kind uint16

	// chunkStringPool
	Strings []string
	Styles  [][]ResSpan

	// chunkTable
	PackageCount uint32

	// chunkTable, chunkXml, chunkTablePackage
	Children []*Chunk

	// xml node chunks
	Node         ResXMLNodeHeader
	Namespace    ResXMLNamespace
	StartElement ResXMLStartElement
	Attrs        []ResXMLAttribute
	EndElement   ResXMLEndElement

	// chunkResourceMap
	ResourceIds []uint32

	// chunkTablePackage
	Package ResTablePackageHeader

	// chunkTableType, chunkTableTypeSpec
	TypeID uint8

	// chunkTableType
	Config  ResTableConfig
	Entries []*ResTableEntry // index = entry id, nil = no entry

	// chunkTableTypeSpec
	SpecFlags []uint32
}

// IsTable reports whether the chunk is a resource table rather than a
// compiled xml document.
func (c *Chunk) IsTable() bool { return c.Kind == chunkTable }

// ResSpan is one rich-text style span of a pool string. A span list is
// terminated on the wire by a name reference of -1.
type ResSpan struct {
	Name      int32
	FirstChar uint32
	LastChar  uint32
}

type ResXMLNodeHeader struct {
	LineNumber uint32
	Comment    int32
}

func defaultNodeHeader() ResXMLNodeHeader {
	return ResXMLNodeHeader{LineNumber: 1, Comment: -1}
}

type ResXMLNamespace struct {
	Prefix int32
	URI    int32
}

type ResXMLStartElement struct {
	// String pool references of the element namespace and name, -1 for no
	// namespace.
	Namespace int32
	Name      int32
	// Byte offset from this structure to the attribute records, and the size
	// of each record.
	AttributeStart uint16
	AttributeSize  uint16
	AttributeCount uint16
	// 1-based positions of the "id", "class" and "style" attributes, 0 when
	// absent.
	IDIndex    uint16
	ClassIndex uint16
	StyleIndex uint16
}

type ResXMLAttribute struct {
	Namespace  int32
	Name       int32
	RawValue   int32
	TypedValue ResValue
}

type ResXMLEndElement struct {
	Namespace int32
	Name      int32
}

func pos(r io.Seeker) (int64, error) {
	return r.Seek(0, io.SeekCurrent)
}

// ParseChunk reads one chunk, including all nested chunks, from r. The
// reader has to be seekable because table entry records are addressed through
// offset tables rather than stored strictly sequentially.
func ParseChunk(r io.ReadSeeker) (*Chunk, error) {
	start, err := pos(r)
	if err != nil {
		return nil, err
	}

	id, headerLen, size, err := parseChunkHeader(r)
	if err != nil {
		return nil, err
	}

	// Bound the declared size against the input before any count read from
	// the body is trusted for allocation.
	endPos := start + int64(size)
	streamEnd, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if endPos > streamEnd {
		return nil, fmt.Errorf("chunk 0x%04x: declared size %d runs past the input end", id, size)
	}
	if _, err := r.Seek(start+chunkHeaderSize, io.SeekStart); err != nil {
		return nil, err
	}

	c := &Chunk{Kind: id}

	switch id {
	case chunkNull:
		// no body
	case chunkStringPool:
		c.Strings, c.Styles, err = parseStringPool(r, start, endPos)
	case chunkTable:
		if err = binary.Read(r, binary.LittleEndian, &c.PackageCount); err != nil {
			break
		}
		c.Children, err = parseChildren(r, endPos)
	case chunkXml:
		c.Children, err = parseChildren(r, endPos)
	case chunkXmlNsStart, chunkXmlNsEnd:
		if err = binary.Read(r, binary.LittleEndian, &c.Node); err != nil {
			break
		}
		err = binary.Read(r, binary.LittleEndian, &c.Namespace)
	case chunkXmlTagStart:
		err = c.parseStartElement(r)
	case chunkXmlTagEnd:
		if err = binary.Read(r, binary.LittleEndian, &c.Node); err != nil {
			break
		}
		err = binary.Read(r, binary.LittleEndian, &c.EndElement)
	case chunkResourceMap:
		c.ResourceIds = make([]uint32, (size-uint32(headerLen))/4)
		err = binary.Read(r, binary.LittleEndian, c.ResourceIds)
	case chunkTablePackage:
		if err = c.Package.parse(r); err != nil {
			break
		}
		c.Children, err = parseChildren(r, endPos)
	case chunkTableType:
		err = c.parseTableType(r, start, endPos)
	case chunkTableTypeSpec:
		err = c.parseTableTypeSpec(r, endPos)
	case chunkUnknown:
		_, err = r.Seek(endPos, io.SeekStart)
	default:
		return nil, fmt.Errorf("unrecognized chunk type 0x%04x at offset %d", id, start)
	}

	if err != nil {
		return nil, fmt.Errorf("chunk 0x%04x: %w", id, err)
	}

	cur, err := pos(r)
	if err != nil {
		return nil, err
	}
	if cur != endPos {
		return nil, fmt.Errorf("chunk 0x%04x: ended at offset %d, expected %d", id, cur, endPos)
	}
	return c, nil
}

func parseChildren(r io.ReadSeeker, endPos int64) ([]*Chunk, error) {
	var children []*Chunk
	for {
		cur, err := pos(r)
		if err != nil {
			return nil, err
		}
		if cur >= endPos {
			return children, nil
		}

		child, err := ParseChunk(r)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
}

func (c *Chunk) parseStartElement(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, &c.Node); err != nil {
		return err
	}

	if err := binary.Read(r, binary.LittleEndian, &c.StartElement); err != nil {
		return err
	}

	c.Attrs = make([]ResXMLAttribute, c.StartElement.AttributeCount)
	return binary.Read(r, binary.LittleEndian, c.Attrs)
}

const noEntry = 0xffffffff

func (c *Chunk) parseTableType(r io.ReadSeeker, start, endPos int64) error {
	var hdr struct {
		ID           uint8
		Flags        uint8
		Res1         uint16
		EntryCount   uint32
		EntriesStart uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if hdr.ID == 0 {
		return fmt.Errorf("table type with invalid type id 0")
	}
	const flagSparse = 1 << 0
	if hdr.Flags&^uint8(flagSparse) != 0 {
		return fmt.Errorf("unrecognized table type flags 0x%02x", hdr.Flags)
	}

	c.TypeID = hdr.ID
	cur, err := pos(r)
	if err != nil {
		return err
	}
	if err := c.Config.parse(r, endPos-cur); err != nil {
		return err
	}

	// Sparse tables store (index, offset/4) pairs for populated entries only;
	// dense tables store one offset slot per possible index. Both decode into
	// the same dense in-memory array.
	cur, err = pos(r)
	if err != nil {
		return err
	}
	if int64(hdr.EntryCount) > (endPos-cur)/4 {
		return fmt.Errorf("entry count %d does not fit in the chunk", hdr.EntryCount)
	}
	sparse := hdr.Flags&flagSparse != 0
	type slot struct {
		offset uint32
		index  uint16
	}
	slots := make([]slot, hdr.EntryCount)
	high := uint32(hdr.EntryCount)
	for i := range slots {
		if sparse {
			var idx, off uint16
			if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
				return err
			}
			if err := binary.Read(r, binary.LittleEndian, &off); err != nil {
				return err
			}
			if uint32(idx)+1 > high {
				high = uint32(idx) + 1
			}
			offset := uint32(noEntry)
			if off != 0xffff {
				offset = uint32(off) * 4
			}
			slots[i] = slot{offset: offset, index: idx}
		} else {
			var off uint32
			if err := binary.Read(r, binary.LittleEndian, &off); err != nil {
				return err
			}
			slots[i] = slot{offset: off, index: uint16(i)}
		}
	}

	c.Entries = make([]*ResTableEntry, high)
	for _, s := range slots {
		if s.offset == noEntry {
			continue
		}

		if _, err := r.Seek(start+int64(hdr.EntriesStart)+int64(s.offset), io.SeekStart); err != nil {
			return err
		}
		entry, err := parseTableEntry(r, endPos)
		if err != nil {
			return err
		}
		c.Entries[s.index] = entry
	}

	// Entry records are reached through the offset table, so the cursor does
	// not advance through the body strictly in order. Land on the chunk end,
	// erroring out if an entry ran past it.
	cur, err = pos(r)
	if err != nil {
		return err
	}
	if cur > endPos {
		return fmt.Errorf("table type entry ran past chunk end (offset %d, chunk ends at %d)", cur, endPos)
	}
	_, err = r.Seek(endPos, io.SeekStart)
	return err
}

func (c *Chunk) parseTableTypeSpec(r io.ReadSeeker, endPos int64) error {
	var hdr struct {
		ID         uint8
		Res0       uint8
		TypesCount uint16
		EntryCount uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if hdr.ID == 0 {
		return fmt.Errorf("table type spec with invalid type id 0")
	}

	cur, err := pos(r)
	if err != nil {
		return err
	}
	if int64(hdr.EntryCount) > (endPos-cur)/4 {
		return fmt.Errorf("entry count %d does not fit in the chunk", hdr.EntryCount)
	}

	c.TypeID = hdr.ID
	c.SpecFlags = make([]uint32, hdr.EntryCount)
	return binary.Read(r, binary.LittleEndian, c.SpecFlags)
}
