package binres

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Java class files are big-endian, unlike every other format this package
// reads. Constant pool tags, JVM spec table 4.4-B.
const (
	cpUtf8          = 1
	cpInteger       = 3
	cpFloat         = 4
	cpLong          = 5
	cpDouble        = 6
	cpClass         = 7
	cpString        = 8
	cpFieldref      = 9
	cpMethodref     = 10
	cpInterfaceref  = 11
	cpNameAndType   = 12
	cpMethodHandle  = 15
	cpMethodType    = 16
	cpDynamic       = 17
	cpInvokeDynamic = 18
	cpModule        = 19
	cpPackage       = 20
)

const fieldAccPublicStaticFinal = 0x0001 | 0x0008 | 0x0010

// RClassValue extracts the value of the public static final int field from
// the android/R$<class>.class entry of the platform jar. It covers the rare
// identifiers that do not surface in the resource table.
func RClassValue(jarPath, class, field string) (uint32, error) {
	data, err := extractZipEntry(jarPath, fmt.Sprintf("android/R$%s.class", class))
	if err != nil {
		return 0, err
	}
	v, err := classFieldConstant(data, field)
	if err != nil {
		return 0, fmt.Errorf("android/R$%s: %w", class, err)
	}
	return v, nil
}

// classFieldConstant parses a class file and returns the ConstantValue of the
// named int field.
func classFieldConstant(data []byte, field string) (uint32, error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return 0, fmt.Errorf("reading magic: %w", err)
	}
	if magic != 0xcafebabe {
		return 0, fmt.Errorf("bad class file magic 0x%08x", magic)
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil { // minor, major
		return 0, err
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return 0, fmt.Errorf("reading constant pool count: %w", err)
	}

	utf8s := make(map[uint16]string)
	ints := make(map[uint16]uint32)
	for i := uint16(1); i < cpCount; i++ {
		tag, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("reading constant pool tag %d: %w", i, err)
		}
		switch tag {
		case cpUtf8:
			var n uint16
			if err := binary.Read(r, binary.BigEndian, &n); err != nil {
				return 0, err
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, err
			}
			utf8s[i] = string(buf)
		case cpInteger:
			var v uint32
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return 0, err
			}
			ints[i] = v
		case cpFloat:
			if _, err := r.Seek(4, io.SeekCurrent); err != nil {
				return 0, err
			}
		case cpLong, cpDouble:
			// 8-byte constants take two pool slots.
			if _, err := r.Seek(8, io.SeekCurrent); err != nil {
				return 0, err
			}
			i++
		case cpClass, cpString, cpMethodType, cpModule, cpPackage:
			if _, err := r.Seek(2, io.SeekCurrent); err != nil {
				return 0, err
			}
		case cpFieldref, cpMethodref, cpInterfaceref, cpNameAndType, cpDynamic, cpInvokeDynamic:
			if _, err := r.Seek(4, io.SeekCurrent); err != nil {
				return 0, err
			}
		case cpMethodHandle:
			if _, err := r.Seek(3, io.SeekCurrent); err != nil {
				return 0, err
			}
		default:
			return 0, fmt.Errorf("unknown constant pool tag %d", tag)
		}
	}

	// access flags, this class, super class.
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return 0, err
	}
	var ifaceCount uint16
	if err := binary.Read(r, binary.BigEndian, &ifaceCount); err != nil {
		return 0, fmt.Errorf("reading interface count: %w", err)
	}
	if _, err := r.Seek(int64(ifaceCount)*2, io.SeekCurrent); err != nil {
		return 0, err
	}

	var fieldCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldCount); err != nil {
		return 0, fmt.Errorf("reading field count: %w", err)
	}
	for f := uint16(0); f < fieldCount; f++ {
		var hdr struct {
			Access     uint16
			Name       uint16
			Descriptor uint16
			AttrCount  uint16
		}
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			return 0, fmt.Errorf("reading field %d: %w", f, err)
		}
		match := utf8s[hdr.Name] == field &&
			utf8s[hdr.Descriptor] == "I" &&
			hdr.Access&fieldAccPublicStaticFinal == fieldAccPublicStaticFinal
		for a := uint16(0); a < hdr.AttrCount; a++ {
			var name uint16
			var length uint32
			if err := binary.Read(r, binary.BigEndian, &name); err != nil {
				return 0, err
			}
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return 0, err
			}
			if match && utf8s[name] == "ConstantValue" && length == 2 {
				var idx uint16
				if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
					return 0, err
				}
				v, ok := ints[idx]
				if !ok {
					return 0, fmt.Errorf("field %s: ConstantValue is not an int constant", field)
				}
				return v, nil
			}
			if _, err := r.Seek(int64(length), io.SeekCurrent); err != nil {
				return 0, err
			}
		}
	}
	return 0, fmt.Errorf("no public static final int field %s", field)
}
