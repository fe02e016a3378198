package cand

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// CANopen object codes.
const (
	ObjectTypeDomain uint8 = 0x2
	ObjectTypeVar    uint8 = 0x7
	ObjectTypeArray  uint8 = 0x8
	ObjectTypeRecord uint8 = 0x9
)

const nodeIDPrefix = "$nodeid"

var (
	matchIndex    = regexp.MustCompile(`^[0-9a-f]{4}$`)
	matchSubindex = regexp.MustCompile(`^([0-9a-f]{4})sub([0-9a-f]+)$`)
)

// LoadCatalogDCF builds a catalog from an EDS or DCF file. source is a file
// path or the raw file content. nodeID replaces $NODEID in values.
//
// Only VAR and DOMAIN objects become entries; ARRAY and RECORD objects are
// represented by their sub-index sections. Objects of unsupported data types
// are skipped.
func LoadCatalogDCF(source interface{}, nodeID uint8) (*Catalog, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
	}, source)
	if err != nil {
		return nil, fmt.Errorf("cand: load dcf: %w", err)
	}

	var entries []*Entry
	for _, section := range file.Sections() {
		var (
			index    uint64
			subindex uint64
			parent   string
		)

		name := section.Name()
		if matchIndex.MatchString(name) {
			index, _ = strconv.ParseUint(name, 16, 16)
		} else if m := matchSubindex.FindStringSubmatch(name); m != nil {
			index, _ = strconv.ParseUint(m[1], 16, 16)
			subindex, err = strconv.ParseUint(m[2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("cand: dcf section [%s]: %w", section.Name(), err)
			}
			parent = file.Section(m[1]).Key("ParameterName").String()
		} else {
			continue
		}

		entry, err := parseDCFObject(section, uint16(index), uint8(subindex), parent, nodeID)
		if err != nil {
			return nil, fmt.Errorf("cand: dcf section [%s]: %w", section.Name(), err)
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	return NewCatalog(entries...)
}

func parseDCFObject(section *ini.Section, index uint16, subindex uint8, parent string, nodeID uint8) (*Entry, error) {
	objectType := ObjectTypeVar
	if section.HasKey("ObjectType") {
		v, err := parseDCFUint(section.Key("ObjectType").String(), nodeID)
		if err != nil {
			return nil, fmt.Errorf("ObjectType: %w", err)
		}
		objectType = uint8(v)
	}
	if objectType != ObjectTypeVar && objectType != ObjectTypeDomain {
		return nil, nil
	}

	dtRaw, err := parseDCFUint(section.Key("DataType").String(), nodeID)
	if err != nil {
		return nil, fmt.Errorf("DataType: %w", err)
	}
	dt := DataType(dtRaw)
	if objectType == ObjectTypeDomain && dtRaw == 0 {
		dt = TypeDomain
	}
	if !dt.Valid() {
		return nil, nil
	}

	name := section.Key("ParameterName").String()
	if parent != "" {
		name = parent + "." + name
	}

	defaultRaw := section.Key("DefaultValue").String()
	if section.HasKey("ParameterValue") {
		defaultRaw = section.Key("ParameterValue").String()
	}
	def, err := parseDCFValue(dt, defaultRaw, nodeID)
	if err != nil {
		return nil, fmt.Errorf("DefaultValue: %w", err)
	}

	entry := &Entry{
		Name:     name,
		Index:    index,
		Subindex: subindex,
		DataType: dt,
		Default:  def,
	}

	low := section.Key("LowLimit").String()
	high := section.Key("HighLimit").String()
	if (low != "" || high != "") && dt.Size() > 0 && dt != TypeBool {
		limits := &Limits{}
		if low != "" {
			if limits.Low, err = parseDCFValue(dt, low, nodeID); err != nil {
				return nil, fmt.Errorf("LowLimit: %w", err)
			}
		}
		if high != "" {
			if limits.High, err = parseDCFValue(dt, high, nodeID); err != nil {
				return nil, fmt.Errorf("HighLimit: %w", err)
			}
		}
		entry.Limits = limits
	}

	return entry, nil
}

// splitNodeID strips a leading $NODEID+ and reports whether it was there.
func splitNodeID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), nodeIDPrefix) {
		return s, false
	}
	s = strings.TrimSpace(s[len(nodeIDPrefix):])
	s = strings.TrimPrefix(s, "+")
	return strings.TrimSpace(s), true
}

func parseDCFUint(s string, nodeID uint8) (uint64, error) {
	s, withNode := splitNodeID(s)
	var v uint64
	if s != "" {
		var err error
		if v, err = strconv.ParseUint(s, 0, 64); err != nil {
			return 0, err
		}
	}
	if withNode {
		v += uint64(nodeID)
	}
	return v, nil
}

func parseDCFInt(s string, nodeID uint8) (int64, error) {
	s, withNode := splitNodeID(s)
	var v int64
	if s != "" {
		var err error
		if v, err = strconv.ParseInt(s, 0, 64); err != nil {
			return 0, err
		}
	}
	if withNode {
		v += int64(nodeID)
	}
	return v, nil
}

func parseDCFValue(dt DataType, s string, nodeID uint8) (Value, error) {
	switch dt {
	case TypeString:
		return StringValue(s), nil
	case TypeDomain:
		return NoValue(), nil
	case TypeBytes:
		raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
		if err != nil {
			return Value{}, err
		}
		return BytesValue(raw), nil
	case TypeFloat32, TypeFloat64:
		if strings.TrimSpace(s) == "" {
			return FloatValue(0), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case TypeBool:
		v, err := parseDCFUint(s, nodeID)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(v != 0), nil
	}

	if dt.Signed() {
		v, err := parseDCFInt(s, nodeID)
		if err != nil {
			return Value{}, err
		}
		return IntValue(v), nil
	}
	v, err := parseDCFUint(s, nodeID)
	if err != nil {
		return Value{}, err
	}
	return UintValue(v), nil
}
