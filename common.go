// Package binres implements the chunk-based binary container format used by
// Android for compiled AndroidManifest.xml files and resources.arsc resource
// tables, together with a compiler that turns a textual manifest into its
// binary form using a resource-id dictionary imported from android.jar.
package binres

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	chunkNull          = 0x0000
	chunkStringPool    = 0x0001
	chunkTable         = 0x0002
	chunkXml           = 0x0003
	chunkXmlNsStart    = 0x0100
	chunkXmlNsEnd      = 0x0101
	chunkXmlTagStart   = 0x0102
	chunkXmlTagEnd     = 0x0103
	chunkXmlText       = 0x0104
	chunkResourceMap   = 0x0180
	chunkTablePackage  = 0x0200
	chunkTableType     = 0x0201
	chunkTableTypeSpec = 0x0202
	chunkUnknown       = 0x0206

	chunkHeaderSize = 2 + 2 + 4
)

// ResValue data types, as stored in the data_type byte.
const (
	DataTypeNull      = 0x00
	DataTypeReference = 0x01
	DataTypeAttribute = 0x02
	DataTypeString    = 0x03
	DataTypeFloat     = 0x04
	DataTypeDimension = 0x05
	DataTypeFraction  = 0x06
	DataTypeIntDec    = 0x10
	DataTypeIntHex    = 0x11
	DataTypeIntBool   = 0x12

	DataTypeColorArgb8 = 0x1c
	DataTypeColorRgb8  = 0x1d
	DataTypeColorArgb4 = 0x1e
	DataTypeColorRgb4  = 0x1f
)

// Declared format bitmask of an attr resource, stored in the first map value
// of its complex entry.
const (
	AttrTypeAny       = 0x0000ffff
	AttrTypeReference = 1 << 0
	AttrTypeString    = 1 << 1
	AttrTypeInteger   = 1 << 2
	AttrTypeBoolean   = 1 << 3
	AttrTypeColor     = 1 << 4
	AttrTypeFloat     = 1 << 5
	AttrTypeDimension = 1 << 6
	AttrTypeFraction  = 1 << 7
	AttrTypeEnum      = 1 << 16
	AttrTypeFlags     = 1 << 17
)

func parseChunkHeader(r io.Reader) (id, headerLen uint16, size uint32, err error) {
	if err = binary.Read(r, binary.LittleEndian, &id); err != nil {
		return
	}

	if err = binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return
	}

	if err = binary.Read(r, binary.LittleEndian, &size); err != nil {
		return
	}

	if uint32(headerLen) > size {
		err = fmt.Errorf("chunk 0x%04x: header size %d exceeds total size %d", id, headerLen, size)
	}
	return
}

func writeChunkHeader(w io.Writer, id, headerLen uint16, size uint32) error {
	if err := binary.Write(w, binary.LittleEndian, id); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, headerLen); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, size)
}

// ResValue is the 8-byte typed scalar used for attribute values and simple
// table entries.
type ResValue struct {
	Size     uint16
	Res0     uint8
	DataType uint8
	Data     uint32
}

func parseResValue(r io.Reader) (ResValue, error) {
	var v ResValue
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func (v *ResValue) write(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, v)
}
