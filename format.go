package fontcache

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// magicLength is the number of leading bytes compared against registered
// font signatures. Every registered magic number is exactly this long.
const magicLength = 5

// FormatDescriptor pairs a font file extension with the leading byte
// signature identifying that format on the wire.
type FormatDescriptor struct {
	// Extension is the lowercase file extension without the dot (e.g. "ttf").
	Extension string

	// Magic is the leading byte signature of the format. It must be exactly
	// magicLength bytes; shorter signatures are padded with 0x00.
	Magic []byte
}

// defaultFormats returns the descriptors seeded on every Client:
// TrueType and OpenType.
func defaultFormats() []FormatDescriptor {
	return []FormatDescriptor{
		{Extension: "ttf", Magic: []byte{0x00, 0x01, 0x00, 0x00, 0x00}},
		{Extension: "otf", Magic: []byte{0x4F, 0x54, 0x54, 0x4F, 0x00}},
	}
}

// formatTable is the extension and magic-number registry a Client validates
// downloads against. It is built once at construction and never mutated, so
// it is safe for concurrent use without locking.
type formatTable struct {
	formats []FormatDescriptor
	byExt   map[string]FormatDescriptor
}

// newFormatTable builds the registry from the default descriptors plus any
// caller-supplied extras. Extras with an extension matching a default
// override the default entry. Descriptors are copied and their signatures
// normalized, so later mutation of the caller's slices cannot change the
// table.
func newFormatTable(extra ...FormatDescriptor) *formatTable {
	formats := make([]FormatDescriptor, 0, len(extra)+2)
	for _, f := range append(defaultFormats(), extra...) {
		f.Extension = strings.ToLower(f.Extension)
		f.Magic = normalizeMagic(f.Magic)
		formats = append(formats, f)
	}

	t := &formatTable{
		formats: formats,
		byExt:   make(map[string]FormatDescriptor, len(formats)),
	}
	for _, f := range formats {
		if f.Extension != "" {
			t.byExt[f.Extension] = f
		}
	}
	return t
}

// normalizeMagic copies a signature into exactly magicLength bytes, padding
// short signatures with 0x00 and trimming long ones.
func normalizeMagic(magic []byte) []byte {
	out := make([]byte, magicLength)
	copy(out, magic)
	return out
}

// fileExtension returns the lowercase extension of path, without the dot.
// Returns "" when path contains no dot.
func fileExtension(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

// isValid reports whether path carries a registered extension or blob opens
// with a registered magic number. Either check alone is sufficient: a known
// extension passes even when the body does not match its signature, and an
// unknown extension is accepted when the leading bytes match any registered
// signature. Blobs shorter than magicLength never match a signature.
func (t *formatTable) isValid(path string, blob []byte) bool {
	if _, ok := t.byExt[fileExtension(path)]; ok {
		return true
	}

	if len(blob) < magicLength {
		return false
	}
	prefix := blob[:magicLength]
	for _, f := range t.formats {
		if bytes.Equal(prefix, f.Magic) {
			return true
		}
	}
	return false
}

// validate returns an error wrapping ErrUnsupportedFormat, naming the
// supported extension set, when isValid reports false.
func (t *formatTable) validate(path string, blob []byte) error {
	if t.isValid(path, blob) {
		return nil
	}
	return fmt.Errorf("%w: supported formats are %s", ErrUnsupportedFormat, t.supported())
}

// supported returns the registered extensions as a sorted comma-separated
// list for error messages.
func (t *formatTable) supported() string {
	exts := make([]string, 0, len(t.byExt))
	for ext := range t.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
