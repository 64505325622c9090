package binres

import (
	"fmt"
	"sort"
)

// StringPoolBuilder collects the strings an XML document needs before any
// chunk is emitted and lays them out the way aapt does: attribute names with
// well-known resource ids come first, ordered by ascending id so the pool
// indices line up with the resource map, followed by all remaining strings in
// sorted order. Indices are only meaningful after Build.
type StringPoolBuilder struct {
	attrNames map[uint32]string
	strings   map[string]bool
	pool      []string
}

func NewStringPoolBuilder() *StringPoolBuilder {
	return &StringPoolBuilder{
		attrNames: make(map[uint32]string),
		strings:   make(map[string]bool),
	}
}

// AddAttribute registers an attribute and, for string-typed attributes, its
// value. Attributes outside the dictionary are rejected.
func (b *StringPoolBuilder) AddAttribute(name, value string) error {
	info, ok := attributeInfo(name)
	if !ok {
		return fmt.Errorf("unsupported attribute %q", name)
	}
	if info.resID != 0 {
		b.attrNames[info.resID] = name
	} else {
		b.AddString(name)
	}
	if info.ty == DataTypeString {
		b.AddString(value)
	}
	return nil
}

func (b *StringPoolBuilder) AddString(s string) {
	b.strings[s] = true
}

// Build finalizes the pool layout and returns the strings alongside the
// resource map, one id per leading attribute name.
func (b *StringPoolBuilder) Build() (strings []string, resourceMap []uint32) {
	ids := make([]uint32, 0, len(b.attrNames))
	for id := range b.attrNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		name := b.attrNames[id]
		b.pool = append(b.pool, name)
		seen[name] = true
	}

	rest := make([]string, 0, len(b.strings))
	for s := range b.strings {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	b.pool = append(b.pool, rest...)

	return b.pool, ids
}

// ID returns the pool index of s. The string must have been registered before
// Build; asking for anything else is a bug in the collection pass.
func (b *StringPoolBuilder) ID(s string) int32 {
	for i, v := range b.pool {
		if v == s {
			return int32(i)
		}
	}
	panic(fmt.Sprintf("string %q is not in the pool", s))
}
