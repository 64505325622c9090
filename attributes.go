package binres

import (
	"fmt"
	"strconv"
	"strings"
)

// attrInfo describes one android: attribute the compiler understands: its
// well-known resource id (0 for attributes that have none, like the bare
// "package" attribute) and the primitive type its value compiles to.
type attrInfo struct {
	name  string
	resID uint32
	ty    uint8
}

// attributes is the compiled-in dictionary, process-wide and immutable.
//
// The ids of compileSdkVersion and compileSdkVersionCodename are not listed
// in the public resource table and were taken from aapt2 output as observed.
var attributes = []attrInfo{
	{"allowBackup", 0x01010280, DataTypeIntBool},
	{"appComponentFactory", 0x0101057a, DataTypeString},
	{"compileSdkVersion", 0x01010572, DataTypeIntDec},
	{"compileSdkVersionCodename", 0x01010573, DataTypeString},
	{"configChanges", 0x0101001f, DataTypeIntHex},
	{"debuggable", 0x0101000f, DataTypeIntBool},
	{"exported", 0x01010010, DataTypeIntBool},
	{"glEsVersion", 0x01010281, DataTypeIntHex},
	{"hardwareAccelerated", 0x010102d3, DataTypeIntBool},
	{"hasCode", 0x0101000c, DataTypeIntBool},
	{"icon", 0x01010002, DataTypeReference},
	{"installLocation", 0x010102b7, DataTypeIntDec},
	{"label", 0x01010001, DataTypeString},
	{"launchMode", 0x0101001d, DataTypeIntDec},
	{"maxSdkVersion", 0x01010271, DataTypeIntDec},
	{"minSdkVersion", 0x0101020c, DataTypeIntDec},
	{"name", 0x01010003, DataTypeString},
	{"package", 0, DataTypeString},
	{"platformBuildVersionCode", 0, DataTypeIntDec},
	{"platformBuildVersionName", 0, DataTypeIntDec},
	{"required", 0x0101028e, DataTypeIntBool},
	{"screenOrientation", 0x0101001e, DataTypeIntDec},
	{"targetSdkVersion", 0x01010270, DataTypeIntDec},
	{"theme", 0x01010000, DataTypeReference},
	{"value", 0x01010024, DataTypeIntDec},
	{"versionCode", 0x0101021b, DataTypeIntDec},
	{"versionName", 0x0101021c, DataTypeString},
	{"windowSoftInputMode", 0x0101022b, DataTypeIntHex},
}

func attributeInfo(name string) (attrInfo, bool) {
	for _, info := range attributes {
		if info.name == name {
			return info, true
		}
	}
	return attrInfo{}, false
}

// compileAttr compiles one attribute value according to its dictionary type.
// The value must already be in literal form (decimal, 0x-prefixed hex, or
// true/false); symbolic enum and flag names are resolved against the resource
// table beforehand, see resolveAttrValue. Every referenced string must have
// been registered with the pool builder during the collection pass.
func compileAttr(pool *StringPoolBuilder, namespace, name, value string) (ResXMLAttribute, error) {
	info, ok := attributeInfo(name)
	if !ok {
		return ResXMLAttribute{}, fmt.Errorf("unsupported attribute %q", name)
	}

	var data uint32
	switch info.ty {
	case DataTypeString:
		data = uint32(pool.ID(value))
	case DataTypeReference, DataTypeIntDec:
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return ResXMLAttribute{}, fmt.Errorf("attribute %q: expected a decimal value, got %q", name, value)
		}
		data = uint32(v)
	case DataTypeIntHex:
		hex, found := strings.CutPrefix(value, "0x")
		if !found {
			return ResXMLAttribute{}, fmt.Errorf("attribute %q: expected a 0x-prefixed hex value, got %q", name, value)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return ResXMLAttribute{}, fmt.Errorf("attribute %q: expected a hex value, got %q", name, value)
		}
		data = uint32(v)
	case DataTypeIntBool:
		switch value {
		case "true":
			data = 0xffffffff
		case "false":
			data = 0x00000000
		default:
			return ResXMLAttribute{}, fmt.Errorf("attribute %q: expected true or false, got %q", name, value)
		}
	default:
		return ResXMLAttribute{}, fmt.Errorf("attribute %q: unhandled data type 0x%02x", name, info.ty)
	}

	// Only string values mirror their pool index in raw_value.
	raw := int32(-1)
	if info.ty == DataTypeString {
		raw = pool.ID(value)
	}

	nsRef := int32(-1)
	if namespace != "" {
		nsRef = pool.ID(namespace)
	}

	return ResXMLAttribute{
		Namespace: nsRef,
		Name:      pool.ID(name),
		RawValue:  raw,
		TypedValue: ResValue{
			Size:     8,
			DataType: info.ty,
			Data:     data,
		},
	}, nil
}

// resolveAttrValue rewrites a symbolic attribute value into the literal form
// compileAttr expects, consulting the attr declaration in the imported table:
// enum names resolve to their decimal value, |-separated flag names OR
// together into a hex literal, @-references resolve to their packed id.
// Values already in literal form pass through untouched, as does everything
// when no table is available.
func resolveAttrValue(table *ResourceTable, info attrInfo, value string) (string, error) {
	if table == nil {
		return value, nil
	}

	switch info.ty {
	case DataTypeReference:
		if !strings.HasPrefix(value, "@") {
			return value, nil
		}
		ref, err := ParseRef(value)
		if err != nil {
			return "", err
		}
		entry, err := table.EntryByRef(ref)
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", info.name, err)
		}
		return strconv.FormatUint(uint64(entry.ID), 10), nil
	case DataTypeIntDec:
		if _, err := strconv.ParseUint(value, 10, 32); err == nil {
			return value, nil
		}
	case DataTypeIntHex:
		if strings.HasPrefix(value, "0x") {
			return value, nil
		}
	default:
		return value, nil
	}

	if info.resID == 0 {
		return value, nil
	}

	attr, err := table.EntryByRef(AttrRef(info.name))
	if err != nil {
		return "", fmt.Errorf("attribute %q: %w", info.name, err)
	}
	format, err := attr.AttributeType()
	if err != nil {
		return "", fmt.Errorf("attribute %q: %w", info.name, err)
	}

	lookup := func(name string) (uint32, error) {
		id, err := table.EntryByRef(IDRef(name))
		if err != nil {
			return 0, fmt.Errorf("attribute %q: unknown value %q: %w", info.name, name, err)
		}
		v, ok := attr.LookupValue(id.ID)
		if !ok {
			return 0, fmt.Errorf("attribute %q: %q is not a declared value", info.name, name)
		}
		return v.Data, nil
	}

	switch format {
	case AttrTypeEnum:
		v, err := lookup(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case AttrTypeFlags:
		var acc uint32
		for _, part := range strings.Split(value, "|") {
			v, err := lookup(part)
			if err != nil {
				return "", err
			}
			acc |= v
		}
		return fmt.Sprintf("0x%x", acc), nil
	}
	return value, nil
}
