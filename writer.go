package binres

import (
	"encoding/binary"
	"fmt"
	"io"
)

// seekBuffer is an in-memory io.WriteSeeker. The chunk writer emits
// placeholder headers and later seeks back to patch in the sizes, which
// bytes.Buffer cannot do.
type seekBuffer struct {
	buf []byte
	off int64
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := int(b.off) + len(p); need > len(b.buf) {
		if need <= cap(b.buf) {
			b.buf = b.buf[:need]
		} else {
			b.buf = append(b.buf, make([]byte, need-len(b.buf))...)
		}
	}
	copy(b.buf[b.off:], p)
	b.off += int64(len(p))
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.off + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to negative offset %d", abs)
	}
	b.off = abs
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte {
	return b.buf
}

// chunkWriter tracks one chunk being written: the header goes out as a
// placeholder first and is rewritten once the body length is known.
type chunkWriter struct {
	id        uint16
	start     int64
	endHeader int64
}

func beginChunk(w io.WriteSeeker, id uint16) (*chunkWriter, error) {
	start, err := pos(w)
	if err != nil {
		return nil, err
	}
	if err := writeChunkHeader(w, id, 0, 0); err != nil {
		return nil, err
	}
	return &chunkWriter{id: id, start: start}, nil
}

// headerDone records where the chunk header (common header plus the fixed
// variant fields) ends and the variable body begins.
func (cw *chunkWriter) headerDone(w io.Seeker) error {
	end, err := pos(w)
	if err != nil {
		return err
	}
	cw.endHeader = end
	return nil
}

// finish rewrites the placeholder header with the now-known sizes and leaves
// the cursor at the chunk end. It returns the chunk end offset.
func (cw *chunkWriter) finish(w io.WriteSeeker) (int64, error) {
	if cw.endHeader == 0 {
		return 0, fmt.Errorf("chunk 0x%04x: finish called before headerDone", cw.id)
	}

	end, err := pos(w)
	if err != nil {
		return 0, err
	}

	if _, err := w.Seek(cw.start, io.SeekStart); err != nil {
		return 0, err
	}
	if err := writeChunkHeader(w, cw.id, uint16(cw.endHeader-cw.start), uint32(end-cw.start)); err != nil {
		return 0, err
	}
	_, err = w.Seek(end, io.SeekStart)
	return end, err
}

// Bytes serializes the chunk tree into a fresh byte buffer.
func (c *Chunk) Bytes() ([]byte, error) {
	var buf seekBuffer
	if err := c.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes the chunk tree to w. Null and Unknown chunks serialize to
// nothing.
func (c *Chunk) Write(w io.WriteSeeker) error {
	switch c.Kind {
	case chunkNull, chunkUnknown:
		return nil
	case chunkStringPool:
		return writeStringPool(w, c.Strings, c.Styles)
	case chunkTable:
		cw, err := beginChunk(w, chunkTable)
		if err != nil {
			return err
		}
		var packages uint32
		for _, child := range c.Children {
			if child.Kind == chunkTablePackage {
				packages++
			}
		}
		if err := binary.Write(w, binary.LittleEndian, packages); err != nil {
			return err
		}
		if err := cw.headerDone(w); err != nil {
			return err
		}
		for _, child := range c.Children {
			if err := child.Write(w); err != nil {
				return err
			}
		}
		_, err = cw.finish(w)
		return err
	case chunkXml:
		cw, err := beginChunk(w, chunkXml)
		if err != nil {
			return err
		}
		if err := cw.headerDone(w); err != nil {
			return err
		}
		for _, child := range c.Children {
			if err := child.Write(w); err != nil {
				return err
			}
		}
		_, err = cw.finish(w)
		return err
	case chunkXmlNsStart, chunkXmlNsEnd:
		cw, err := beginChunk(w, c.Kind)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, &c.Node); err != nil {
			return err
		}
		if err := cw.headerDone(w); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, &c.Namespace); err != nil {
			return err
		}
		_, err = cw.finish(w)
		return err
	case chunkXmlTagStart:
		return c.writeStartElement(w)
	case chunkXmlTagEnd:
		cw, err := beginChunk(w, chunkXmlTagEnd)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, &c.Node); err != nil {
			return err
		}
		if err := cw.headerDone(w); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, &c.EndElement); err != nil {
			return err
		}
		_, err = cw.finish(w)
		return err
	case chunkResourceMap:
		cw, err := beginChunk(w, chunkResourceMap)
		if err != nil {
			return err
		}
		if err := cw.headerDone(w); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, c.ResourceIds); err != nil {
			return err
		}
		_, err = cw.finish(w)
		return err
	case chunkTablePackage:
		return c.writeTablePackage(w)
	case chunkTableType:
		return c.writeTableType(w)
	case chunkTableTypeSpec:
		return c.writeTableTypeSpec(w)
	default:
		return fmt.Errorf("cannot write chunk of type 0x%04x", c.Kind)
	}
}

func (c *Chunk) writeStartElement(w io.WriteSeeker) error {
	cw, err := beginChunk(w, chunkXmlTagStart)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &c.Node); err != nil {
		return err
	}
	if err := cw.headerDone(w); err != nil {
		return err
	}

	se := c.StartElement
	se.AttributeCount = uint16(len(c.Attrs))
	if se.AttributeStart == 0 {
		se.AttributeStart = 0x0014
	}
	if se.AttributeSize == 0 {
		se.AttributeSize = 0x0014
	}
	if err := binary.Write(w, binary.LittleEndian, &se); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.Attrs); err != nil {
		return err
	}
	_, err = cw.finish(w)
	return err
}

// writeTablePackage lays out the package children and backpatches the
// type/key string pool offsets into the package header afterwards. The first
// two children must be the type-name and key-name pools.
func (c *Chunk) writeTablePackage(w io.WriteSeeker) error {
	if len(c.Children) < 2 ||
		c.Children[0].Kind != chunkStringPool || c.Children[1].Kind != chunkStringPool {
		return fmt.Errorf("table package %q: first two children must be the type and key string pools", c.Package.Name)
	}

	cw, err := beginChunk(w, chunkTablePackage)
	if err != nil {
		return err
	}
	headerStart, err := pos(w)
	if err != nil {
		return err
	}

	hdr := c.Package
	if err := hdr.write(w); err != nil {
		return err
	}
	if err := cw.headerDone(w); err != nil {
		return err
	}

	typeStrings, err := pos(w)
	if err != nil {
		return err
	}
	hdr.TypeStrings = uint32(typeStrings - cw.start)
	if err := c.Children[0].Write(w); err != nil {
		return err
	}

	keyStrings, err := pos(w)
	if err != nil {
		return err
	}
	hdr.KeyStrings = uint32(keyStrings - cw.start)
	if err := c.Children[1].Write(w); err != nil {
		return err
	}

	for _, child := range c.Children[2:] {
		if err := child.Write(w); err != nil {
			return err
		}
	}

	end, err := cw.finish(w)
	if err != nil {
		return err
	}

	if _, err := w.Seek(headerStart, io.SeekStart); err != nil {
		return err
	}
	if err := hdr.write(w); err != nil {
		return err
	}
	_, err = w.Seek(end, io.SeekStart)
	return err
}

// writeTableType always emits the dense index table representation; the
// sparse encoding is a read-only compatibility path.
func (c *Chunk) writeTableType(w io.WriteSeeker) error {
	if c.TypeID == 0 {
		return fmt.Errorf("table type with invalid type id 0")
	}

	cw, err := beginChunk(w, chunkTableType)
	if err != nil {
		return err
	}
	headerStart, err := pos(w)
	if err != nil {
		return err
	}

	writeHeader := func(entriesStart uint32) error {
		hdr := struct {
			ID           uint8
			Flags        uint8
			Res1         uint16
			EntryCount   uint32
			EntriesStart uint32
		}{ID: c.TypeID, EntryCount: uint32(len(c.Entries)), EntriesStart: entriesStart}
		if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
			return err
		}
		return c.Config.write(w)
	}
	if err := writeHeader(0); err != nil {
		return err
	}
	if err := cw.headerDone(w); err != nil {
		return err
	}

	// Reserve the flat index table, one slot per entry.
	if err := binary.Write(w, binary.LittleEndian, make([]uint32, len(c.Entries))); err != nil {
		return err
	}

	entriesPos, err := pos(w)
	if err != nil {
		return err
	}

	for i, entry := range c.Entries {
		offset := uint32(noEntry)
		if entry != nil {
			cur, err := pos(w)
			if err != nil {
				return err
			}
			offset = uint32(cur - entriesPos)
			if err := entry.write(w); err != nil {
				return err
			}
		}

		cur, err := pos(w)
		if err != nil {
			return err
		}
		if _, err := w.Seek(cw.endHeader+int64(4*i), io.SeekStart); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, offset); err != nil {
			return err
		}
		if _, err := w.Seek(cur, io.SeekStart); err != nil {
			return err
		}
	}

	end, err := cw.finish(w)
	if err != nil {
		return err
	}

	// The header is rewritten in full now that entries_start is known.
	if _, err := w.Seek(headerStart, io.SeekStart); err != nil {
		return err
	}
	if err := writeHeader(uint32(entriesPos - cw.start)); err != nil {
		return err
	}
	_, err = w.Seek(end, io.SeekStart)
	return err
}

func (c *Chunk) writeTableTypeSpec(w io.WriteSeeker) error {
	if c.TypeID == 0 {
		return fmt.Errorf("table type spec with invalid type id 0")
	}

	cw, err := beginChunk(w, chunkTableTypeSpec)
	if err != nil {
		return err
	}
	hdr := struct {
		ID         uint8
		Res0       uint8
		TypesCount uint16
		EntryCount uint32
	}{ID: c.TypeID, EntryCount: uint32(len(c.SpecFlags))}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := cw.headerDone(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.SpecFlags); err != nil {
		return err
	}
	_, err = cw.finish(w)
	return err
}
