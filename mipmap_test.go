package binres

import (
	"fmt"
	"testing"
)

func TestCompileMipmap(t *testing.T) {
	table, ref, err := CompileMipmap("com.example.app", "icon")
	if err != nil {
		t.Fatal(err)
	}
	if uint32(ref) != 0x7f010000 {
		t.Fatalf("icon ref = %s, want 0x7f010000", ref)
	}

	parsed := roundTripChunk(t, table)

	values := parsed.Children[0].Strings
	if len(values) != len(densityBuckets) {
		t.Fatalf("value pool has %d strings, want %d", len(values), len(densityBuckets))
	}

	pkg := parsed.Children[1]
	var seen int
	for _, child := range pkg.Children {
		if child.Kind != chunkTableType {
			continue
		}
		if n := len(child.Entries); n != 1 {
			t.Fatalf("table type has %d entries, want 1", n)
		}
		entry := child.Entries[0]
		if entry.Value.DataType != DataTypeString {
			t.Errorf("entry type = 0x%02x, want string", entry.Value.DataType)
		}
		path := values[entry.Value.Data]
		want := fmt.Sprintf("res/mipmap-%s-v4/icon.png", densityBuckets[seen].label)
		if path != want {
			t.Errorf("bucket %d path = %q, want %q", seen, path, want)
		}
		if child.Config.ScreenType.Density != densityBuckets[seen].dpi {
			t.Errorf("bucket %d density = %d, want %d",
				seen, child.Config.ScreenType.Density, densityBuckets[seen].dpi)
		}
		seen++
	}
	if seen != len(densityBuckets) {
		t.Fatalf("found %d density buckets, want %d", seen, len(densityBuckets))
	}
}

func TestCompileMipmapLookup(t *testing.T) {
	mipmap, ref, err := CompileMipmap("com.example.app", "icon")
	if err != nil {
		t.Fatal(err)
	}

	table := new(ResourceTable)
	table.ImportChunk(mipmap)

	e, err := table.EntryByRef(Ref{Type: "mipmap", Name: "icon"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != ref {
		t.Errorf("resolved id = %s, want %s", e.ID, ref)
	}
	v, ok := e.Value()
	if !ok || v.DataType != DataTypeString {
		t.Errorf("value = %+v, want a simple string value", v)
	}
}

func TestCompileMipmapEmptyArgs(t *testing.T) {
	if _, _, err := CompileMipmap("", "icon"); err == nil {
		t.Error("empty package was accepted")
	}
	if _, _, err := CompileMipmap("com.example.app", ""); err == nil {
		t.Error("empty resource name was accepted")
	}
}
