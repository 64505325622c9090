package binres

import "fmt"

// configDensity marks the density dimension in a type spec's config mask.
const configDensity = 0x0100

var densityBuckets = []struct {
	label string
	dpi   uint16
}{
	{"mdpi", 160},
	{"hdpi", 240},
	{"xhdpi", 320},
	{"xxhdpi", 480},
	{"xxxhdpi", 640},
}

// CompileMipmap assembles the minimal resource table declaring one launcher
// icon under mipmap/<name>, with one string entry per standard density bucket
// pointing at the generated png path. The returned reference identifies the
// icon entry and is what a manifest icon attribute compiles to.
func CompileMipmap(pkg, name string) (*Chunk, ResTableRef, error) {
	if pkg == "" || name == "" {
		return nil, 0, fmt.Errorf("package and resource name must not be empty")
	}

	values := make([]string, len(densityBuckets))
	for i, b := range densityBuckets {
		values[i] = fmt.Sprintf("res/mipmap-%s-v4/%s.png", b.label, name)
	}

	children := []*Chunk{
		{Kind: chunkTableTypeSpec, TypeID: 1, SpecFlags: []uint32{configDensity}},
	}
	for i, b := range densityBuckets {
		children = append(children, &Chunk{
			Kind:   chunkTableType,
			TypeID: 1,
			Config: ResTableConfig{
				Size:       64,
				ScreenType: ScreenType{Density: b.dpi},
				// Density qualifiers need at least sdk 4.
				Version: 4,
				Unknown: make([]byte, 36),
			},
			Entries: []*ResTableEntry{{
				Size:  8,
				Key:   0,
				Value: ResValue{Size: 8, DataType: DataTypeString, Data: uint32(i)},
			}},
		})
	}

	table := &Chunk{
		Kind: chunkTable,
		Children: []*Chunk{
			{Kind: chunkStringPool, Strings: values},
			{
				Kind: chunkTablePackage,
				Package: ResTablePackageHeader{
					ID:             uint32(appPackageID),
					Name:           pkg,
					LastPublicType: 1,
					LastPublicKey:  1,
				},
				Children: append([]*Chunk{
					{Kind: chunkStringPool, Strings: []string{"mipmap"}},
					{Kind: chunkStringPool, Strings: []string{name}},
				}, children...),
			},
		},
	}

	return table, NewResTableRef(appPackageID, 1, 0), nil
}
