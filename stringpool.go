package binres

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	stringFlagSorted = 0x00000001
	stringFlagUtf8   = 0x00000100
)

// parseStringPool reads a string pool chunk body. The per-string offset table
// exists for forward indexing only; strings are laid out in index order, so
// they are read sequentially. A string with an invalid UTF-8 payload is
// replaced by the empty string instead of failing the pool: some resources.arsc
// files in the wild carry a few corrupt entries that never get referenced.
func parseStringPool(r io.ReadSeeker, start, endPos int64) ([]string, [][]ResSpan, error) {
	var hdr struct {
		StringCount  uint32
		StyleCount   uint32
		Flags        uint32
		StringsStart uint32
		StylesStart  uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, fmt.Errorf("error reading string pool header: %w", err)
	}

	if hdr.Flags&^uint32(stringFlagSorted|stringFlagUtf8) != 0 {
		return nil, nil, fmt.Errorf("unknown string pool flags 0x%08x", hdr.Flags)
	}
	isUtf8 := hdr.Flags&stringFlagUtf8 != 0

	// The offset tables alone take 4 bytes per entry, so the counts cannot
	// exceed what the chunk has room for.
	bodyStart, err := pos(r)
	if err != nil {
		return nil, nil, err
	}
	if int64(hdr.StringCount)+int64(hdr.StyleCount) > (endPos-bodyStart)/4 {
		return nil, nil, fmt.Errorf("string pool counts (%d strings, %d styles) do not fit in the chunk",
			hdr.StringCount, hdr.StyleCount)
	}

	// Skip the offset tables.
	if _, err := r.Seek(int64(hdr.StringCount+hdr.StyleCount)*4, io.SeekCurrent); err != nil {
		return nil, nil, err
	}

	strings := make([]string, 0, hdr.StringCount)
	for i := uint32(0); i < hdr.StringCount; i++ {
		var s string
		var err error
		var ok bool
		if isUtf8 {
			s, ok, err = parseString8(r)
		} else {
			s, err = parseString16(r)
			ok = true
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading string %d: %w", i, err)
		}
		strings = append(strings, s)
		if !ok {
			// Terminator mismatch. The remaining layout cannot be trusted;
			// give up on the rest of the pool but keep what was decoded.
			for len(strings) < int(hdr.StringCount) {
				strings = append(strings, "")
			}
			_, err := r.Seek(endPos, io.SeekStart)
			return strings, nil, err
		}
	}

	// Style data begins 4-byte aligned relative to the chunk.
	cur, err := pos(r)
	if err != nil {
		return nil, nil, err
	}
	if pad := (cur - start) % 4; pad != 0 {
		if _, err := r.Seek(4-pad, io.SeekCurrent); err != nil {
			return nil, nil, err
		}
	}

	var styles [][]ResSpan
	for i := uint32(0); i < hdr.StyleCount; i++ {
		var spans []ResSpan
		for {
			var name int32
			if err := binary.Read(r, binary.LittleEndian, &name); err != nil {
				return nil, nil, fmt.Errorf("error reading style %d: %w", i, err)
			}
			if name == -1 {
				break
			}
			span := ResSpan{Name: name}
			if err := binary.Read(r, binary.LittleEndian, &span.FirstChar); err != nil {
				return nil, nil, err
			}
			if err := binary.Read(r, binary.LittleEndian, &span.LastChar); err != nil {
				return nil, nil, err
			}
			spans = append(spans, span)
		}
		styles = append(styles, spans)
	}

	// Tolerate trailing padding the writer may have emitted.
	if _, err := r.Seek(endPos, io.SeekStart); err != nil {
		return nil, nil, err
	}
	return strings, styles, nil
}

// parseLen8 reads a 1-or-2 byte length: bit 7 of the first byte marks a
// second byte carrying the low bits.
func parseLen8(r io.Reader) (int, error) {
	var high uint8
	if err := binary.Read(r, binary.LittleEndian, &high); err != nil {
		return 0, err
	}
	if high&0x80 == 0 {
		return int(high), nil
	}

	var low uint8
	if err := binary.Read(r, binary.LittleEndian, &low); err != nil {
		return 0, err
	}
	return int(high&0x7f)<<8 | int(low), nil
}

func parseString8(r io.Reader) (s string, ok bool, err error) {
	// Length in UTF-16 code units; only the byte length matters here.
	if _, err = parseLen8(r); err != nil {
		return
	}

	var byteLen int
	if byteLen, err = parseLen8(r); err != nil {
		return
	}

	buf := make([]byte, byteLen)
	if _, err = io.ReadFull(r, buf); err != nil {
		return
	}

	var term uint8
	if err = binary.Read(r, binary.LittleEndian, &term); err != nil {
		return
	}

	if !utf8.Valid(buf) {
		buf = nil
	}
	return string(buf), term == 0, nil
}

func parseString16(r io.Reader) (string, error) {
	var high uint16
	if err := binary.Read(r, binary.LittleEndian, &high); err != nil {
		return "", err
	}
	if high&0x8000 != 0 {
		var low uint16
		if err := binary.Read(r, binary.LittleEndian, &low); err != nil {
			return "", err
		}
		// Length is informational only; the terminator delimits the string.
		_ = uint32(high&0x7fff)<<16 | uint32(low)
	}

	// No byte count is stored for UTF-16 strings: code units are consumed up
	// to the 0x0000 terminator.
	var units []uint16
	for {
		var u uint16
		if err := binary.Read(r, binary.LittleEndian, &u); err != nil {
			return "", err
		}
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// writeStringPool emits a whole string pool chunk. Strings always go out
// UTF-8 encoded; all offsets are recomputed from the actual layout and
// backpatched together with the pool header once the data has been written.
func writeStringPool(w io.WriteSeeker, strings []string, styles [][]ResSpan) error {
	cw, err := beginChunk(w, chunkStringPool)
	if err != nil {
		return err
	}
	poolHeaderStart, err := pos(w)
	if err != nil {
		return err
	}

	// Placeholder pool header and offset slots.
	zeros := make([]uint32, 5+len(strings)+len(styles))
	if err := binary.Write(w, binary.LittleEndian, zeros); err != nil {
		return err
	}

	stringsStart := cw.start + int64(chunkHeaderSize+4*len(zeros))
	offsets := make([]uint32, 0, len(strings)+len(styles))
	for _, s := range strings {
		cur, err := pos(w)
		if err != nil {
			return err
		}
		offsets = append(offsets, uint32(cur-stringsStart))
		if err := writeString8(w, s); err != nil {
			return err
		}
	}

	// Style data is 4-byte aligned; this is the only padding in the pool.
	cur, err := pos(w)
	if err != nil {
		return err
	}
	if pad := (cur - cw.start) % 4; pad != 0 {
		if _, err := w.Write(make([]byte, 4-pad)); err != nil {
			return err
		}
	}

	stylesStart, err := pos(w)
	if err != nil {
		return err
	}
	for _, spans := range styles {
		cur, err := pos(w)
		if err != nil {
			return err
		}
		offsets = append(offsets, uint32(cur-stylesStart))
		for _, span := range spans {
			if err := binary.Write(w, binary.LittleEndian, &span); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, int32(-1)); err != nil {
			return err
		}
	}

	bodyEnd, err := pos(w)
	if err != nil {
		return err
	}

	// The pool header counts as part of the chunk header.
	if _, err := w.Seek(poolHeaderStart+5*4, io.SeekStart); err != nil {
		return err
	}
	if err := cw.headerDone(w); err != nil {
		return err
	}
	if _, err := w.Seek(bodyEnd, io.SeekStart); err != nil {
		return err
	}
	end, err := cw.finish(w)
	if err != nil {
		return err
	}

	hdr := struct {
		StringCount  uint32
		StyleCount   uint32
		Flags        uint32
		StringsStart uint32
		StylesStart  uint32
	}{
		StringCount:  uint32(len(strings)),
		StyleCount:   uint32(len(styles)),
		Flags:        stringFlagUtf8,
		StringsStart: uint32(stringsStart - cw.start),
	}
	if len(styles) > 0 {
		hdr.StylesStart = uint32(stylesStart - cw.start)
	}

	if _, err := w.Seek(poolHeaderStart, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, offsets); err != nil {
		return err
	}
	_, err = w.Seek(end, io.SeekStart)
	return err
}

func writeLen8(w io.Writer, n int) error {
	if n > 0x7fff {
		return fmt.Errorf("string length %d exceeds the encodable maximum", n)
	}
	if n > 0x7f {
		if err := binary.Write(w, binary.LittleEndian, uint8(n>>8|0x80)); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, uint8(n))
}

func writeString8(w io.Writer, s string) error {
	if err := writeLen8(w, utf8.RuneCountInString(s)); err != nil {
		return err
	}
	if err := writeLen8(w, len(s)); err != nil {
		return err
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint8(0))
}
