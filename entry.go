package cand

import (
	"fmt"
	"sort"
)

// EnumMember is a symbolic constant of an Enum.
type EnumMember struct {
	Name  string
	Value int64
}

// Enum maps raw integer entry values to symbolic constants.
type Enum struct {
	Name    string
	Members []EnumMember
}

// NewEnum builds an Enum from its members.
func NewEnum(name string, members ...EnumMember) *Enum {
	return &Enum{Name: name, Members: members}
}

// Lookup returns the member whose value is v.
func (e *Enum) Lookup(v int64) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Value == v {
			return m, true
		}
	}
	return EnumMember{}, false
}

// ByName returns the member called name.
func (e *Enum) ByName(name string) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return EnumMember{}, false
}

// BitField is a run of Bits bits starting at Offset inside an unsigned
// entry value.
type BitField struct {
	Name   string
	Bits   uint8
	Offset uint8
}

// Mask returns ((1<<Bits)-1)<<Offset.
func (bf BitField) Mask() uint64 {
	return bf.max() << bf.Offset
}

func (bf BitField) max() uint64 {
	if bf.Bits >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<bf.Bits - 1
}

// Limits is an inclusive numeric range. A None bound is open.
type Limits struct {
	Low  Value
	High Value
}

// Entry is an immutable object dictionary row.
type Entry struct {
	Name      string
	Index     uint16
	Subindex  uint8
	DataType  DataType
	Default   Value
	Limits    *Limits
	Enum      *Enum
	BitFields []BitField
}

// Key returns (Index << 8) | Subindex.
func (e *Entry) Key() uint32 {
	return entryKey(e.Index, e.Subindex)
}

func entryKey(index uint16, subindex uint8) uint32 {
	return uint32(index)<<8 | uint32(subindex)
}

func (e *Entry) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (0x%04X:%d)", e.Name, e.Index, e.Subindex)
	}
	return fmt.Sprintf("0x%04X:%d", e.Index, e.Subindex)
}

// Encode substitutes enum constants, checks limits and encodes v.
func (e *Entry) Encode(v Value) ([]byte, error) {
	if m, ok := v.Enum(); ok {
		v = IntValue(m.Value)
		if !e.DataType.Signed() {
			v = UintValue(uint64(m.Value))
		}
	}

	if e.Limits != nil {
		if err := e.checkLimits(v); err != nil {
			return nil, err
		}
	}

	raw, err := Encode(e.DataType, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return raw, nil
}

func (e *Entry) checkLimits(v Value) error {
	if !e.Limits.Low.IsNone() {
		if c, ok := compare(v, e.Limits.Low); ok && c < 0 {
			return fmt.Errorf("%s: %w: %v below %v", e, ErrOutOfRange, v, e.Limits.Low)
		}
	}
	if !e.Limits.High.IsNone() {
		if c, ok := compare(v, e.Limits.High); ok && c > 0 {
			return fmt.Errorf("%s: %w: %v above %v", e, ErrOutOfRange, v, e.Limits.High)
		}
	}
	return nil
}

// Decode decodes raw. Enum members are never substituted.
func (e *Entry) Decode(raw []byte) (Value, error) {
	v, err := Decode(e.DataType, raw)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", e, err)
	}
	return v, nil
}

// DecodeToEnum decodes raw and maps the result to an enum member when one
// matches. Unmatched values are returned as decoded.
func (e *Entry) DecodeToEnum(raw []byte) (Value, error) {
	if e.Enum == nil {
		return Value{}, fmt.Errorf("%s: %w", e, ErrNoEnum)
	}
	v, err := e.Decode(raw)
	if err != nil {
		return Value{}, err
	}
	return e.ToEnum(v)
}

// ToEnum maps an integer value to the matching enum member.
func (e *Entry) ToEnum(v Value) (Value, error) {
	if e.Enum == nil {
		return Value{}, fmt.Errorf("%s: %w", e, ErrNoEnum)
	}
	if v.Kind() != KindInt && v.Kind() != KindUint {
		return v, nil
	}
	if m, ok := e.Enum.Lookup(v.Int()); ok {
		return EnumValue(m), nil
	}
	return v, nil
}

func (e *Entry) hasBitField(bf BitField) bool {
	for _, f := range e.BitFields {
		if f == bf {
			return true
		}
	}
	return false
}

// ValueToBitField splits v into its bit field values.
func (e *Entry) ValueToBitField(v int64) (map[BitField]int64, error) {
	if len(e.BitFields) == 0 {
		return nil, fmt.Errorf("%s: %w: no bit fields", e, ErrOutOfRange)
	}
	if v < 0 {
		return nil, fmt.Errorf("%s: %w: negative value %d", e, ErrOutOfRange, v)
	}

	fields := make(map[BitField]int64, len(e.BitFields))
	for _, bf := range e.BitFields {
		fields[bf] = int64((uint64(v) & bf.Mask()) >> bf.Offset)
	}
	return fields, nil
}

// BitFieldToValue packs field values into a single integer.
func (e *Entry) BitFieldToValue(fields map[BitField]int64) (int64, error) {
	if len(e.BitFields) == 0 {
		return 0, fmt.Errorf("%s: %w: no bit fields", e, ErrOutOfRange)
	}

	var v uint64
	for bf, fv := range fields {
		if !e.hasBitField(bf) {
			return 0, fmt.Errorf("%s: %w: bit field %q not defined", e, ErrOutOfRange, bf.Name)
		}
		if fv < 0 || uint64(fv) > bf.max() {
			return 0, fmt.Errorf("%s: %w: %d does not fit bit field %q", e, ErrOutOfRange, fv, bf.Name)
		}
		v |= uint64(fv) << bf.Offset
	}
	return int64(v), nil
}

// Catalog is the immutable table of entries addressed by (index, subindex).
type Catalog struct {
	byKey  map[uint32]*Entry
	byName map[string]*Entry
	sorted []*Entry
}

// NewCatalog indexes entries. Two entries at the same address are rejected.
func NewCatalog(entries ...*Entry) (*Catalog, error) {
	c := &Catalog{
		byKey:  make(map[uint32]*Entry, len(entries)),
		byName: make(map[string]*Entry, len(entries)),
		sorted: make([]*Entry, 0, len(entries)),
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if prev, ok := c.byKey[e.Key()]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateEntry, prev, e)
		}
		c.byKey[e.Key()] = e
		if e.Name != "" {
			c.byName[e.Name] = e
		}
		c.sorted = append(c.sorted, e)
	}
	sort.Slice(c.sorted, func(i, j int) bool {
		return c.sorted[i].Key() < c.sorted[j].Key()
	})
	return c, nil
}

// Find returns the entry at index:subindex.
func (c *Catalog) Find(index uint16, subindex uint8) (*Entry, error) {
	if e, ok := c.byKey[entryKey(index, subindex)]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: 0x%04X:%d", ErrUnknownEntry, index, subindex)
}

// FindName returns the entry called name, or nil.
func (c *Catalog) FindName(name string) *Entry {
	return c.byName[name]
}

// Entries returns all entries ordered by address.
func (c *Catalog) Entries() []*Entry {
	out := make([]*Entry, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.sorted)
}
