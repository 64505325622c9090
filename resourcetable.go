package binres

import (
	"bytes"
	"fmt"
	"strings"
)

// appPackageID is the package id resources of the application itself live
// under when a reference does not name a package.
const appPackageID = 0x7f

// Ref names one resource by package, type and entry key, e.g.
// "@android:attr/label". An empty package means the application package.
type Ref struct {
	Package string
	Type    string
	Name    string
}

// AttrRef names an attr resource of the android platform package.
func AttrRef(name string) Ref {
	return Ref{Package: "android", Type: "attr", Name: name}
}

// IDRef names an id resource of the android platform package.
func IDRef(name string) Ref {
	return Ref{Package: "android", Type: "id", Name: name}
}

// ParseRef parses a textual resource reference of the form
// "@[package:]type/name".
func ParseRef(s string) (Ref, error) {
	rest, found := strings.CutPrefix(s, "@")
	if !found {
		return Ref{}, fmt.Errorf("invalid reference %q: expected `@`", s)
	}

	descr, name, found := strings.Cut(rest, "/")
	if !found {
		return Ref{}, fmt.Errorf("invalid reference %q: expected `/`", s)
	}

	pkg, ty, found := strings.Cut(descr, ":")
	if !found {
		return Ref{Type: descr, Name: name}, nil
	}
	return Ref{Package: pkg, Type: ty, Name: name}, nil
}

// ResourceTable is a read-only resource-identifier dictionary accumulated
// from imported resources.arsc tables. Once imported it never mutates, so a
// single table may serve any number of independent compiles.
type ResourceTable struct {
	packages []*Chunk
}

// ImportApk extracts resources.arsc from the ZIP archive at path (an APK or
// android.jar) and imports every package it contains.
func (t *ResourceTable) ImportApk(path string) error {
	raw, err := extractZipEntry(path, "resources.arsc")
	if err != nil {
		return err
	}

	chunk, err := ParseChunk(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse resources.arsc from %s: %w", path, err)
	}
	t.ImportChunk(chunk)
	return nil
}

// ImportChunk appends the packages of a parsed table chunk. Packages
// accumulate across imports; nothing is de-duplicated.
func (t *ResourceTable) ImportChunk(c *Chunk) {
	if c.Kind != chunkTable {
		return
	}
	for _, child := range c.Children {
		if child.Kind == chunkTablePackage {
			t.packages = append(t.packages, child)
		}
	}
}

func (t *ResourceTable) packageIDByName(name string) (uint8, error) {
	if name == "" {
		return appPackageID, nil
	}
	for _, pkg := range t.packages {
		if pkg.Package.Name == name {
			return uint8(pkg.Package.ID), nil
		}
	}
	return 0, fmt.Errorf("failed to locate package %q", name)
}

func (t *ResourceTable) packageByID(id uint8) (*tablePackage, error) {
	for _, pkg := range t.packages {
		if uint8(pkg.Package.ID) == id {
			return newTablePackage(id, pkg)
		}
	}
	return nil, fmt.Errorf("failed to locate package %d", id)
}

// EntryByRef resolves a named reference through the imported packages. Every
// step is an exact linear name match; any miss reports which component could
// not be found.
func (t *ResourceTable) EntryByRef(r Ref) (*Entry, error) {
	pkgID, err := t.packageIDByName(r.Package)
	if err != nil {
		return nil, err
	}
	pkg, err := t.packageByID(pkgID)
	if err != nil {
		return nil, err
	}
	typeID, err := pkg.typeIDByName(r.Type)
	if err != nil {
		return nil, err
	}
	ty, err := pkg.typeByID(typeID)
	if err != nil {
		return nil, err
	}
	key, err := pkg.keyIDByName(r.Name)
	if err != nil {
		return nil, err
	}
	idx, err := ty.entryIDByKey(key)
	if err != nil {
		return nil, err
	}
	return ty.entry(idx)
}

// tablePackage pairs a package chunk with its two name pools. The first two
// children of a package are always the type-name and key-name string pools.
type tablePackage struct {
	id     uint8
	types  []string
	keys   []string
	chunks []*Chunk
}

func newTablePackage(id uint8, pkg *Chunk) (*tablePackage, error) {
	if len(pkg.Children) < 2 ||
		pkg.Children[0].Kind != chunkStringPool || pkg.Children[1].Kind != chunkStringPool {
		return nil, fmt.Errorf("package %d: missing type or key string pool", id)
	}
	return &tablePackage{
		id:     id,
		types:  pkg.Children[0].Strings,
		keys:   pkg.Children[1].Strings,
		chunks: pkg.Children[2:],
	}, nil
}

func (p *tablePackage) typeIDByName(name string) (uint8, error) {
	for i, s := range p.types {
		if s == name {
			// Type ids are 1-based; 0 is invalid.
			return uint8(i + 1), nil
		}
	}
	return 0, fmt.Errorf("failed to locate type id of %q", name)
}

func (p *tablePackage) keyIDByName(name string) (uint32, error) {
	for i, s := range p.keys {
		if s == name {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("failed to locate key id of %q", name)
}

func (p *tablePackage) typeByID(id uint8) (*tableType, error) {
	for _, chunk := range p.chunks {
		if chunk.Kind == chunkTableType && chunk.TypeID == id {
			return &tableType{pkg: p.id, id: id, entries: chunk.Entries}, nil
		}
	}
	return nil, fmt.Errorf("failed to locate type %d", id)
}

type tableType struct {
	pkg     uint8
	id      uint8
	entries []*ResTableEntry
}

func (t *tableType) entryIDByKey(key uint32) (uint16, error) {
	for i, entry := range t.entries {
		if entry != nil && entry.Key == key {
			return uint16(i), nil
		}
	}
	return 0, fmt.Errorf("failed to locate entry with key %d", key)
}

func (t *tableType) entry(idx uint16) (*Entry, error) {
	if int(idx) >= len(t.entries) || t.entries[idx] == nil {
		return nil, fmt.Errorf("failed to locate entry %d", idx)
	}
	return &Entry{
		ID:    NewResTableRef(t.pkg, t.id, idx),
		entry: t.entries[idx],
	}, nil
}

// Entry pairs a resolved resource entry with its packed reference.
type Entry struct {
	ID    ResTableRef
	entry *ResTableEntry
}

// AttributeType recovers the declared format bitmask of an attr resource
// from the first map value of its complex entry.
//
// Three bit patterns are matched literally ahead of the bitmask decode:
// Android encodes certain composite formats irregularly and the patterns are
// preserved as observed rather than derived from a rule. Anything else that
// does not match a known bitmask value is an error.
func (e *Entry) AttributeType() (uint32, error) {
	if !e.entry.IsComplex() {
		return 0, fmt.Errorf("entry %s is not an attribute declaration", e.ID)
	}
	if len(e.entry.Map) == 0 {
		return 0, fmt.Errorf("entry %s has no format value", e.ID)
	}

	data := e.entry.Map[0].Value.Data
	switch data {
	case 0b110:
		return AttrTypeInteger, nil
	case 0b11, 0b111110:
		return AttrTypeString, nil
	}

	switch data {
	case AttrTypeAny, AttrTypeReference, AttrTypeString, AttrTypeInteger,
		AttrTypeBoolean, AttrTypeColor, AttrTypeFloat, AttrTypeDimension,
		AttrTypeFraction, AttrTypeEnum, AttrTypeFlags:
		return data, nil
	}
	return 0, fmt.Errorf("entry %s: unrecognized attribute format bitmask 0x%x", e.ID, data)
}

// LookupValue scans the map values of a complex entry for the one named by
// ref. The first map entry holds the format declaration and is skipped.
func (e *Entry) LookupValue(ref ResTableRef) (ResValue, bool) {
	if !e.entry.IsComplex() || len(e.entry.Map) == 0 {
		return ResValue{}, false
	}
	for _, m := range e.entry.Map[1:] {
		if m.Name == uint32(ref) {
			return m.Value, true
		}
	}
	return ResValue{}, false
}

// Value returns the typed scalar of a simple entry.
func (e *Entry) Value() (ResValue, bool) {
	if e.entry.IsComplex() {
		return ResValue{}, false
	}
	return e.entry.Value, true
}
