package binres

import (
	"strings"
	"testing"
)

// attrTypeKey is the map name of the format declaration in an attr entry.
const attrTypeKey = 0x01000000

// testResourceTable builds a small synthetic android package with a few attr
// declarations and their id values, enough to resolve symbolic enum and flag
// names the way a real platform table does.
func testResourceTable(t *testing.T) *ResourceTable {
	t.Helper()

	simple := func(key uint32, data uint32) *ResTableEntry {
		return &ResTableEntry{
			Size:  8,
			Key:   key,
			Value: ResValue{Size: 8, DataType: DataTypeIntDec, Data: data},
		}
	}
	attr := func(key uint32, format uint32, values ...ResTableMap) *ResTableEntry {
		m := append([]ResTableMap{{
			Name:  attrTypeKey,
			Value: ResValue{Size: 8, DataType: DataTypeIntDec, Data: format},
		}}, values...)
		return &ResTableEntry{
			Size:  16,
			Flags: entryFlagComplex,
			Key:   key,
			Map:   m,
		}
	}
	enumVal := func(idx uint16, data uint32) ResTableMap {
		return ResTableMap{
			Name:  uint32(NewResTableRef(1, 2, idx)),
			Value: ResValue{Size: 8, DataType: DataTypeIntDec, Data: data},
		}
	}

	// Key pool indices.
	const (
		keyLaunchMode = iota
		keyConfigChanges
		keyCodename
		keySingleTop
		keyOrientation
		keyKeyboardHidden
		keyInteger
		keyBogus
	)

	// The attr entry array is mostly holes: compileSdkVersionCodename sits at
	// its platform entry index 0x573 so lookups resolve the real id 0x01010573.
	attrEntries := make([]*ResTableEntry, 0x574)
	attrEntries[0] = attr(keyLaunchMode, AttrTypeEnum,
		enumVal(0, 1))
	attrEntries[1] = attr(keyConfigChanges, AttrTypeFlags,
		enumVal(1, 0x0080), enumVal(2, 0x0020))
	attrEntries[2] = attr(keyInteger, 0b110)
	attrEntries[3] = attr(keyBogus, 0b1010100)
	attrEntries[0x573] = attr(keyCodename, 0b11)

	pkg := &Chunk{
		Kind:    chunkTablePackage,
		Package: ResTablePackageHeader{ID: 1, Name: "android"},
		Children: []*Chunk{
			{Kind: chunkStringPool, Strings: []string{"attr", "id"}},
			{Kind: chunkStringPool, Strings: []string{
				"launchMode", "configChanges", "compileSdkVersionCodename",
				"singleTop", "orientation", "keyboardHidden", "integerAttr", "bogusAttr",
			}},
			{Kind: chunkTableTypeSpec, TypeID: 1, SpecFlags: make([]uint32, len(attrEntries))},
			{
				Kind:    chunkTableType,
				TypeID:  1,
				Config:  ResTableConfig{Size: 28},
				Entries: attrEntries,
			},
			{
				Kind:   chunkTableType,
				TypeID: 2,
				Config: ResTableConfig{Size: 28},
				Entries: []*ResTableEntry{
					simple(keySingleTop, 0),
					simple(keyOrientation, 0),
					simple(keyKeyboardHidden, 0),
				},
			},
		},
	}

	table := new(ResourceTable)
	table.ImportChunk(&Chunk{Kind: chunkTable, Children: []*Chunk{pkg}})
	return table
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
	}{
		{"@android:attr/launchMode", Ref{"android", "attr", "launchMode"}},
		{"@mipmap/icon", Ref{"", "mipmap", "icon"}},
	}
	for _, tc := range tests {
		got, err := ParseRef(tc.in)
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"mipmap/icon", "@android:attr"} {
		if _, err := ParseRef(bad); err == nil {
			t.Errorf("ParseRef(%q) did not fail", bad)
		}
	}
}

func TestEntryByRef(t *testing.T) {
	table := testResourceTable(t)

	e, err := table.EntryByRef(AttrRef("launchMode"))
	if err != nil {
		t.Fatalf("resolving launchMode: %v", err)
	}
	if e.ID != NewResTableRef(1, 1, 0) {
		t.Errorf("launchMode id = %s, want 0x01010000", e.ID)
	}

	e, err = table.EntryByRef(AttrRef("compileSdkVersionCodename"))
	if err != nil {
		t.Fatalf("resolving compileSdkVersionCodename: %v", err)
	}
	if uint32(e.ID) != 0x01010573 {
		t.Errorf("compileSdkVersionCodename id = %s, want 0x01010573", e.ID)
	}

	e, err = table.EntryByRef(IDRef("keyboardHidden"))
	if err != nil {
		t.Fatalf("resolving keyboardHidden: %v", err)
	}
	if e.ID != NewResTableRef(1, 2, 2) {
		t.Errorf("keyboardHidden id = %s, want 0x01020002", e.ID)
	}
}

func TestEntryByRefErrors(t *testing.T) {
	table := testResourceTable(t)

	tests := []struct {
		ref  Ref
		want string
	}{
		{Ref{"acme", "attr", "launchMode"}, "failed to locate package"},
		{Ref{"android", "style", "launchMode"}, "failed to locate type id"},
		{Ref{"android", "attr", "nosuch"}, "failed to locate key id"},
		{Ref{"android", "attr", "singleTop"}, "failed to locate entry"},
	}
	for _, tc := range tests {
		_, err := table.EntryByRef(tc.ref)
		if err == nil {
			t.Errorf("resolving %+v did not fail", tc.ref)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("resolving %+v: error %q does not mention %q", tc.ref, err, tc.want)
		}
	}
}

func TestAttributeType(t *testing.T) {
	table := testResourceTable(t)

	tests := []struct {
		name string
		want uint32
	}{
		{"launchMode", AttrTypeEnum},
		{"configChanges", AttrTypeFlags},
		{"compileSdkVersionCodename", AttrTypeString},
		{"integerAttr", AttrTypeInteger},
	}
	for _, tc := range tests {
		e, err := table.EntryByRef(AttrRef(tc.name))
		if err != nil {
			t.Fatalf("resolving %s: %v", tc.name, err)
		}
		got, err := e.AttributeType()
		if err != nil {
			t.Fatalf("%s format: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s format = 0x%x, want 0x%x", tc.name, got, tc.want)
		}
	}

	e, err := table.EntryByRef(AttrRef("bogusAttr"))
	if err != nil {
		t.Fatalf("resolving bogusAttr: %v", err)
	}
	if _, err := e.AttributeType(); err == nil {
		t.Error("unrecognized format bitmask did not fail")
	}
}

func TestLookupValue(t *testing.T) {
	table := testResourceTable(t)

	attr, err := table.EntryByRef(AttrRef("configChanges"))
	if err != nil {
		t.Fatal(err)
	}
	id, err := table.EntryByRef(IDRef("orientation"))
	if err != nil {
		t.Fatal(err)
	}

	v, ok := attr.LookupValue(id.ID)
	if !ok {
		t.Fatal("orientation not found in configChanges values")
	}
	if v.Data != 0x0080 {
		t.Errorf("orientation = 0x%x, want 0x80", v.Data)
	}

	if _, ok := attr.LookupValue(NewResTableRef(1, 2, 0x1234)); ok {
		t.Error("lookup of undeclared value succeeded")
	}
}
