package binres

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// ResTableRef is a packed 32-bit resource reference: bits 24-31 hold the
// package id, bits 16-23 the type id (1-based, 0 invalid) and bits 0-15 the
// entry index.
type ResTableRef uint32

func NewResTableRef(pkg uint8, typeID uint8, entry uint16) ResTableRef {
	return ResTableRef(uint32(pkg)<<24 | uint32(typeID)<<16 | uint32(entry))
}

func (r ResTableRef) Package() uint8 { return uint8(r >> 24) }
func (r ResTableRef) TypeID() uint8  { return uint8(r >> 16) }
func (r ResTableRef) Entry() uint16  { return uint16(r) }

func (r ResTableRef) String() string {
	return fmt.Sprintf("0x%08x", uint32(r))
}

// ResTablePackageHeader mirrors the fixed part of a TablePackage chunk. The
// name is stored on the wire as a zero-padded utf16[128] array.
type ResTablePackageHeader struct {
	ID             uint32
	Name           string
	TypeStrings    uint32
	LastPublicType uint32
	KeyStrings     uint32
	LastPublicKey  uint32
	TypeIDOffset   uint32
}

func (h *ResTablePackageHeader) parse(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, &h.ID); err != nil {
		return fmt.Errorf("error reading package id: %w", err)
	}

	var name [128]uint16
	if err := binary.Read(r, binary.LittleEndian, &name); err != nil {
		return fmt.Errorf("error reading package name: %w", err)
	}
	nameLen := len(name)
	for i, c := range name {
		if c == 0 {
			nameLen = i
			break
		}
	}
	h.Name = string(utf16.Decode(name[:nameLen]))

	var tail [5]uint32
	if err := binary.Read(r, binary.LittleEndian, &tail); err != nil {
		return fmt.Errorf("error reading package header: %w", err)
	}
	h.TypeStrings = tail[0]
	h.LastPublicType = tail[1]
	h.KeyStrings = tail[2]
	h.LastPublicKey = tail[3]
	h.TypeIDOffset = tail[4]
	return nil
}

func (h *ResTablePackageHeader) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h.ID); err != nil {
		return err
	}

	units := utf16.Encode([]rune(h.Name))
	if len(units) >= 128 {
		return fmt.Errorf("package name %q does not fit into 128 utf16 units", h.Name)
	}
	var name [128]uint16
	copy(name[:], units)
	if err := binary.Write(w, binary.LittleEndian, &name); err != nil {
		return err
	}

	tail := [5]uint32{h.TypeStrings, h.LastPublicType, h.KeyStrings, h.LastPublicKey, h.TypeIDOffset}
	return binary.Write(w, binary.LittleEndian, &tail)
}

// ScreenType is the explicitly parsed screen part of a ResTableConfig.
type ScreenType struct {
	Orientation uint8
	Touchscreen uint8
	Density     uint16
}

// ResTableConfig is a length-prefixed configuration blob. Only a handful of
// fields are interpreted; whatever a newer format version appends beyond them
// is preserved verbatim in Unknown so round trips are lossless.
type ResTableConfig struct {
	Size       uint32
	Imsi       uint32
	Locale     uint32
	ScreenType ScreenType
	Input      uint32
	ScreenSize uint32
	Version    uint32
	Unknown    []byte
}

// resTableConfigKnown is the byte span of the interpreted config fields.
const resTableConfigKnown = 7 * 4

func (c *ResTableConfig) parse(r io.Reader, limit int64) error {
	if err := binary.Read(r, binary.LittleEndian, &c.Size); err != nil {
		return fmt.Errorf("error reading config size: %w", err)
	}
	if c.Size < resTableConfigKnown {
		return fmt.Errorf("config size %d below the %d interpreted bytes", c.Size, resTableConfigKnown)
	}
	if int64(c.Size) > limit {
		return fmt.Errorf("config size %d does not fit in the chunk", c.Size)
	}

	if err := binary.Read(r, binary.LittleEndian, &c.Imsi); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Locale); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.ScreenType); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Input); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.ScreenSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Version); err != nil {
		return err
	}

	c.Unknown = make([]byte, c.Size-resTableConfigKnown)
	_, err := io.ReadFull(r, c.Unknown)
	return err
}

func (c *ResTableConfig) write(w io.Writer) error {
	if int(c.Size) != resTableConfigKnown+len(c.Unknown) {
		return fmt.Errorf("config size %d does not match %d interpreted + %d opaque bytes",
			c.Size, resTableConfigKnown, len(c.Unknown))
	}

	for _, v := range []uint32{c.Size, c.Imsi, c.Locale} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, &c.ScreenType); err != nil {
		return err
	}
	for _, v := range []uint32{c.Input, c.ScreenSize, c.Version} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	_, err := w.Write(c.Unknown)
	return err
}

// ResTableEntry flags.
const (
	entryFlagComplex = 0x0001
	entryFlagPublic  = 0x0002
	entryFlagWeak    = 0x0004
)

// ResTableEntry is one resource entry of a TableType chunk: either a simple
// 8-byte typed scalar or, when entryFlagComplex is set, a map entry holding a
// parent reference and a list of (name, value) pairs.
type ResTableEntry struct {
	Size  uint16
	Flags uint16
	Key   uint32

	// simple entries
	Value ResValue

	// complex entries
	Parent uint32
	Map    []ResTableMap
}

type ResTableMap struct {
	Name  uint32
	Value ResValue
}

func (e *ResTableEntry) IsComplex() bool {
	return e.Flags&entryFlagComplex != 0
}

func parseTableEntry(r io.ReadSeeker, endPos int64) (*ResTableEntry, error) {
	e := &ResTableEntry{}
	if err := binary.Read(r, binary.LittleEndian, &e.Size); err != nil {
		return nil, fmt.Errorf("error reading entry size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Flags); err != nil {
		return nil, fmt.Errorf("error reading entry flags: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Key); err != nil {
		return nil, fmt.Errorf("error reading entry key: %w", err)
	}

	if e.Flags&^uint16(entryFlagComplex|entryFlagPublic|entryFlagWeak) != 0 {
		return nil, fmt.Errorf("unrecognized entry flags 0x%04x", e.Flags)
	}

	if !e.IsComplex() {
		var err error
		e.Value, err = parseResValue(r)
		return e, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &e.Parent); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	cur, err := pos(r)
	if err != nil {
		return nil, err
	}
	if int64(count) > (endPos-cur)/12 {
		return nil, fmt.Errorf("map count %d does not fit in the chunk", count)
	}

	e.Map = make([]ResTableMap, count)
	if err := binary.Read(r, binary.LittleEndian, e.Map); err != nil {
		return nil, fmt.Errorf("error reading %d map entries: %w", count, err)
	}
	return e, nil
}

func (e *ResTableEntry) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, e.Size); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Flags); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Key); err != nil {
		return err
	}

	if !e.IsComplex() {
		return e.Value.write(w)
	}

	if err := binary.Write(w, binary.LittleEndian, e.Parent); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Map))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, e.Map)
}
