package binres

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

func TestXmlChunkRoundTrip(t *testing.T) {
	pool := []string{"label", "android", androidNS, "Example", "application", "manifest"}
	c := &Chunk{
		Kind: chunkXml,
		Children: []*Chunk{
			{Kind: chunkStringPool, Strings: pool},
			{Kind: chunkResourceMap, ResourceIds: []uint32{0x01010001}},
			{Kind: chunkXmlNsStart, Node: defaultNodeHeader(), Namespace: ResXMLNamespace{Prefix: 1, URI: 2}},
			{
				Kind: chunkXmlTagStart,
				Node: defaultNodeHeader(),
				StartElement: ResXMLStartElement{
					Namespace:      -1,
					Name:           5,
					AttributeStart: 0x0014,
					AttributeSize:  0x0014,
					AttributeCount: 1,
				},
				Attrs: []ResXMLAttribute{{
					Namespace:  2,
					Name:       0,
					RawValue:   3,
					TypedValue: ResValue{Size: 8, DataType: DataTypeString, Data: 3},
				}},
			},
			{
				Kind: chunkXmlTagStart,
				Node: defaultNodeHeader(),
				StartElement: ResXMLStartElement{
					Namespace:      -1,
					Name:           4,
					AttributeStart: 0x0014,
					AttributeSize:  0x0014,
				},
			},
			{Kind: chunkXmlTagEnd, Node: defaultNodeHeader(), EndElement: ResXMLEndElement{Namespace: -1, Name: 4}},
			{Kind: chunkXmlTagEnd, Node: defaultNodeHeader(), EndElement: ResXMLEndElement{Namespace: -1, Name: 5}},
			{Kind: chunkXmlNsEnd, Node: defaultNodeHeader(), Namespace: ResXMLNamespace{Prefix: 1, URI: 2}},
		},
	}

	parsed := roundTripChunk(t, c)
	if len(parsed.Children) != len(c.Children) {
		t.Fatalf("child count = %d, want %d", len(parsed.Children), len(c.Children))
	}
	if !reflect.DeepEqual(parsed.Children[0].Strings, pool) {
		t.Errorf("pool = %q, want %q", parsed.Children[0].Strings, pool)
	}
	if !reflect.DeepEqual(parsed.Children[3], c.Children[3]) {
		t.Errorf("start element = %+v, want %+v", parsed.Children[3], c.Children[3])
	}
	if !reflect.DeepEqual(parsed.Children[6], c.Children[6]) {
		t.Errorf("end element = %+v, want %+v", parsed.Children[6], c.Children[6])
	}
}

func TestTableChunkRoundTrip(t *testing.T) {
	table, _, err := CompileMipmap("com.example.app", "icon")
	if err != nil {
		t.Fatal(err)
	}

	parsed := roundTripChunk(t, table)
	if parsed.PackageCount != 1 {
		t.Errorf("package count = %d, want 1", parsed.PackageCount)
	}
	pkg := parsed.Children[1]
	if pkg.Kind != chunkTablePackage {
		t.Fatalf("second child is 0x%04x, want a table package", pkg.Kind)
	}
	if pkg.Package.Name != "com.example.app" {
		t.Errorf("package name = %q, want com.example.app", pkg.Package.Name)
	}
	if pkg.Package.TypeStrings == 0 || pkg.Package.KeyStrings == 0 {
		t.Error("string pool offsets were not backpatched")
	}
}

// writeTestConfig emits a minimal 28-byte config with only the density and
// version fields set.
func writeTestConfig(w *bytes.Buffer, density uint16) {
	binary.Write(w, binary.LittleEndian, uint32(28))
	binary.Write(w, binary.LittleEndian, uint32(0)) // imsi
	binary.Write(w, binary.LittleEndian, uint32(0)) // locale
	binary.Write(w, binary.LittleEndian, uint8(0))  // orientation
	binary.Write(w, binary.LittleEndian, uint8(0))  // touchscreen
	binary.Write(w, binary.LittleEndian, density)
	binary.Write(w, binary.LittleEndian, uint32(0)) // input
	binary.Write(w, binary.LittleEndian, uint32(0)) // screen size
	binary.Write(w, binary.LittleEndian, uint32(4)) // version
}

func TestSparseTableType(t *testing.T) {
	// Two populated entries at indices 0 and 3. The sparse form stores
	// (index, offset/4) pairs; the parser reconstructs the dense array.
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(chunkTableType))
	binary.Write(&buf, binary.LittleEndian, uint16(8+12+28))
	binary.Write(&buf, binary.LittleEndian, uint32(8+12+28+8+32))
	binary.Write(&buf, binary.LittleEndian, uint8(1))          // type id
	binary.Write(&buf, binary.LittleEndian, uint8(1))          // sparse flag
	binary.Write(&buf, binary.LittleEndian, uint16(0))         // reserved
	binary.Write(&buf, binary.LittleEndian, uint32(2))         // entry count
	binary.Write(&buf, binary.LittleEndian, uint32(8+12+28+8)) // entries start
	writeTestConfig(&buf, 160)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // index 0
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // offset 0/4
	binary.Write(&buf, binary.LittleEndian, uint16(3)) // index 3
	binary.Write(&buf, binary.LittleEndian, uint16(4)) // offset 16/4
	for i, key := range []uint32{10, 11} {
		binary.Write(&buf, binary.LittleEndian, uint16(8)) // entry size
		binary.Write(&buf, binary.LittleEndian, uint16(0)) // flags
		binary.Write(&buf, binary.LittleEndian, key)
		binary.Write(&buf, binary.LittleEndian, uint16(8)) // value size
		binary.Write(&buf, binary.LittleEndian, uint8(0))
		binary.Write(&buf, binary.LittleEndian, uint8(DataTypeIntDec))
		binary.Write(&buf, binary.LittleEndian, uint32(i))
	}

	c, err := ParseChunk(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Entries) != 4 {
		t.Fatalf("entry count = %d, want dense length 4", len(c.Entries))
	}
	if c.Entries[1] != nil || c.Entries[2] != nil {
		t.Error("holes were not preserved as nil entries")
	}
	if c.Entries[0] == nil || c.Entries[0].Key != 10 {
		t.Errorf("entry 0 = %+v, want key 10", c.Entries[0])
	}
	if c.Entries[3] == nil || c.Entries[3].Key != 11 || c.Entries[3].Value.Data != 1 {
		t.Errorf("entry 3 = %+v, want key 11 data 1", c.Entries[3])
	}
	if c.Config.ScreenType.Density != 160 {
		t.Errorf("density = %d, want 160", c.Config.ScreenType.Density)
	}
}

func TestParseChunkErrors(t *testing.T) {
	header := func(id uint16, headerLen uint16, size uint32) []byte {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, id)
		binary.Write(&buf, binary.LittleEndian, headerLen)
		binary.Write(&buf, binary.LittleEndian, size)
		return buf.Bytes()
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"unrecognized type", header(0x7777, 8, 8)},
		{"text chunk", header(chunkXmlText, 16, 16)},
		{"header larger than chunk", header(chunkXml, 16, 8)},
		{"size mismatch", append(header(chunkXml, 8, 32), make([]byte, 4)...)},
	}
	for _, tc := range tests {
		if _, err := ParseChunk(bytes.NewReader(tc.data)); err == nil {
			t.Errorf("%s: parse did not fail", tc.name)
		}
	}
}

func TestImplausibleCounts(t *testing.T) {
	// Crafted chunks claiming far more records than they have bytes for must
	// fail up front instead of allocating for the claimed count.
	var resourceMap bytes.Buffer
	binary.Write(&resourceMap, binary.LittleEndian, uint16(chunkResourceMap))
	binary.Write(&resourceMap, binary.LittleEndian, uint16(8))
	binary.Write(&resourceMap, binary.LittleEndian, uint32(0xfffffff8))

	var spec bytes.Buffer
	binary.Write(&spec, binary.LittleEndian, uint16(chunkTableTypeSpec))
	binary.Write(&spec, binary.LittleEndian, uint16(16))
	binary.Write(&spec, binary.LittleEndian, uint32(16))
	binary.Write(&spec, binary.LittleEndian, uint8(1)) // type id
	binary.Write(&spec, binary.LittleEndian, uint8(0))
	binary.Write(&spec, binary.LittleEndian, uint16(0))
	binary.Write(&spec, binary.LittleEndian, uint32(0xffffffff)) // entry count

	var tableType bytes.Buffer
	binary.Write(&tableType, binary.LittleEndian, uint16(chunkTableType))
	binary.Write(&tableType, binary.LittleEndian, uint16(8+12+28))
	binary.Write(&tableType, binary.LittleEndian, uint32(8+12+28))
	binary.Write(&tableType, binary.LittleEndian, uint8(1)) // type id
	binary.Write(&tableType, binary.LittleEndian, uint8(0))
	binary.Write(&tableType, binary.LittleEndian, uint16(0))
	binary.Write(&tableType, binary.LittleEndian, uint32(0xffffffff)) // entry count
	binary.Write(&tableType, binary.LittleEndian, uint32(8+12+28))    // entries start
	writeTestConfig(&tableType, 160)

	var complexEntry bytes.Buffer
	binary.Write(&complexEntry, binary.LittleEndian, uint16(chunkTableType))
	binary.Write(&complexEntry, binary.LittleEndian, uint16(8+12+28))
	binary.Write(&complexEntry, binary.LittleEndian, uint32(8+12+28+4+16))
	binary.Write(&complexEntry, binary.LittleEndian, uint8(1)) // type id
	binary.Write(&complexEntry, binary.LittleEndian, uint8(0))
	binary.Write(&complexEntry, binary.LittleEndian, uint16(0))
	binary.Write(&complexEntry, binary.LittleEndian, uint32(1))         // entry count
	binary.Write(&complexEntry, binary.LittleEndian, uint32(8+12+28+4)) // entries start
	writeTestConfig(&complexEntry, 160)
	binary.Write(&complexEntry, binary.LittleEndian, uint32(0))  // offset of entry 0
	binary.Write(&complexEntry, binary.LittleEndian, uint16(16)) // entry size
	binary.Write(&complexEntry, binary.LittleEndian, uint16(entryFlagComplex))
	binary.Write(&complexEntry, binary.LittleEndian, uint32(0))          // key
	binary.Write(&complexEntry, binary.LittleEndian, uint32(0))          // parent
	binary.Write(&complexEntry, binary.LittleEndian, uint32(0xffffffff)) // map count

	var pool bytes.Buffer
	binary.Write(&pool, binary.LittleEndian, uint16(chunkStringPool))
	binary.Write(&pool, binary.LittleEndian, uint16(28))
	binary.Write(&pool, binary.LittleEndian, uint32(28))
	binary.Write(&pool, binary.LittleEndian, uint32(0xffffffff)) // string count
	binary.Write(&pool, binary.LittleEndian, uint32(0))          // style count
	binary.Write(&pool, binary.LittleEndian, uint32(stringFlagUtf8))
	binary.Write(&pool, binary.LittleEndian, uint32(28)) // strings start
	binary.Write(&pool, binary.LittleEndian, uint32(0))  // styles start

	tests := []struct {
		name string
		data []byte
	}{
		{"resource map size", resourceMap.Bytes()},
		{"type spec entry count", spec.Bytes()},
		{"table type entry count", tableType.Bytes()},
		{"complex entry map count", complexEntry.Bytes()},
		{"string pool counts", pool.Bytes()},
	}
	for _, tc := range tests {
		if _, err := ParseChunk(bytes.NewReader(tc.data)); err == nil {
			t.Errorf("%s: parse did not fail", tc.name)
		}
	}
}

func TestNullChunkWritesNothing(t *testing.T) {
	data, err := (&Chunk{Kind: chunkNull}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("null chunk serialized to %d bytes", len(data))
	}
}
