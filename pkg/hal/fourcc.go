package hal

import (
	"fmt"
	"sort"
)

// FourCC is a four character code identifying a native pixel format.
type FourCC [4]byte

// FourCCFromString builds a code from the first four bytes of s, padding
// with spaces.
func FourCCFromString(s string) FourCC {
	c := FourCC{' ', ' ', ' ', ' '}
	copy(c[:], s)
	return c
}

// FourCCFromUint32 unpacks a little endian code as used by V4L2.
func FourCCFromUint32(v uint32) FourCC {
	return FourCC{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Uint32 packs the code little endian.
func (c FourCC) Uint32() uint32 {
	return uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24
}

// String returns the raw four bytes.
func (c FourCC) String() string {
	return string(c[:])
}

// FormatMapping pairs a native tag with its semantic format.
type FormatMapping struct {
	Tag    FourCC
	Format PixelFormat
}

// FormatTable is a bijective mapping between a backend's native tags and
// PixelFormat values.
type FormatTable struct {
	entries  []FormatMapping
	byTag    map[FourCC]PixelFormat
	byFormat map[PixelFormat]FourCC
}

// NewFormatTable builds a table from a static list. It panics when a tag or
// a format appears twice, because the conversions would stop being inverse
// to each other.
func NewFormatTable(entries ...FormatMapping) *FormatTable {
	t := &FormatTable{
		entries:  make([]FormatMapping, 0, len(entries)),
		byTag:    make(map[FourCC]PixelFormat, len(entries)),
		byFormat: make(map[PixelFormat]FourCC, len(entries)),
	}
	for _, e := range entries {
		if !e.Format.IsValid() || e.Format.Kind() == FormatCustom {
			panic(fmt.Sprintf("hal: format table entry %q has no semantic format", e.Tag))
		}
		if prev, dup := t.byTag[e.Tag]; dup {
			panic(fmt.Sprintf("hal: tag %q mapped to both %s and %s", e.Tag, prev, e.Format))
		}
		if prev, dup := t.byFormat[e.Format]; dup {
			panic(fmt.Sprintf("hal: format %s mapped to both %q and %q", e.Format, prev, e.Tag))
		}
		t.byTag[e.Tag] = e.Format
		t.byFormat[e.Format] = e.Tag
		t.entries = append(t.entries, e)
	}
	return t
}

// FromNative converts a native tag. It never fails: unknown tags become
// Custom formats carrying the tag's bytes verbatim.
func (t *FormatTable) FromNative(tag FourCC) PixelFormat {
	if f, ok := t.byTag[tag]; ok {
		return f
	}
	return Custom(tag.String())
}

// ToNative converts a semantic format to the backend's tag. Custom formats
// and formats the backend does not define fail with ErrUnsupported.
func (t *FormatTable) ToNative(f PixelFormat) (FourCC, error) {
	if f.Kind() == FormatCustom {
		return FourCC{}, fmt.Errorf("%w: custom format %q has no native tag", ErrUnsupported, f.Tag())
	}
	tag, ok := t.byFormat[f]
	if !ok {
		return FourCC{}, fmt.Errorf("%w: pixel format %s", ErrUnsupported, f)
	}
	return tag, nil
}

// Tags returns every tag the table defines, sorted.
func (t *FormatTable) Tags() []FourCC {
	tags := make([]FourCC, 0, len(t.entries))
	for _, e := range t.entries {
		tags = append(tags, e.Tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	return tags
}

// Entries returns the table in declaration order.
func (t *FormatTable) Entries() []FormatMapping {
	out := make([]FormatMapping, len(t.entries))
	copy(out, t.entries)
	return out
}
