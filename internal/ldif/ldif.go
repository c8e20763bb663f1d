package ldif

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// A single directory entry: a distinguished name and its attributes.
// Attribute values are raw bytes; the DN itself is not repeated in the
// attribute map.
type Entry struct {
	DN         string
	Attributes map[string][][]byte
}

// Matches one "attr: value" or "attr:: b64value" line.
var lineRe = regexp.MustCompile(`^(\w+)(:?): (.*)$`)

// Matches the optional "version: 1" header block.
var versionRe = regexp.MustCompile(`^version: +1$`)

// Serializes entries as an LDIF document.
//
// Entries are sorted by DN length (shortest first, ties broken
// lexicographically) so that containing entries precede their children,
// matching the order an LDAP server requires for additions.
func Marshal(entries []Entry) []byte {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i].DN) != len(sorted[j].DN) {
			return len(sorted[i].DN) < len(sorted[j].DN)
		}
		return sorted[i].DN < sorted[j].DN
	})

	var buf bytes.Buffer
	buf.WriteString("version: 1\n\n")

	for _, entry := range sorted {
		buf.WriteString(encodeLine("dn", []byte(entry.DN)))
		buf.WriteByte('\n')

		attrs := make([]string, 0, len(entry.Attributes))
		for attr := range entry.Attributes {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)

		for _, attr := range attrs {
			for _, value := range entry.Attributes[attr] {
				buf.WriteString(encodeLine(attr, value))
				buf.WriteByte('\n')
			}
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// Parses an LDIF document into entries.
//
// Accepts an optional "version: 1" header. Base64 values (double-colon
// lines) are decoded; plain values are kept byte-for-byte. Returns
// [ErrInvalid] for lines that fit neither form.
func Unmarshal(data []byte) ([]Entry, error) {
	var entries []Entry

	for _, block := range strings.Split(string(data), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		if strings.HasPrefix(block, "version:") {
			if versionRe.MatchString(strings.TrimSpace(block)) {
				continue
			}
			return nil, fmt.Errorf("%w: unsupported version header %q", ErrInvalid, strings.TrimSpace(block))
		}

		entry := Entry{Attributes: make(map[string][][]byte)}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			m := lineRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("%w: cannot parse line %q", ErrInvalid, line)
			}
			attr, extended, raw := m[1], m[2] == ":", m[3]

			var value []byte
			if extended {
				decoded, err := base64.StdEncoding.DecodeString(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: bad base64 value for %s: %v", ErrInvalid, attr, err)
				}
				value = decoded
			} else {
				value = []byte(raw)
			}

			if attr == "dn" {
				if entry.DN != "" {
					return nil, fmt.Errorf("%w: multiple dn lines in one record", ErrInvalid)
				}
				entry.DN = string(value)
				continue
			}
			entry.Attributes[attr] = append(entry.Attributes[attr], value)
		}

		if entry.DN == "" {
			return nil, fmt.Errorf("%w: record without a dn line", ErrInvalid)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Encodes one attribute/value pair as an LDIF line.
//
// Values containing only safe ASCII are written verbatim after a single
// colon; anything else (control characters, leading-unsafe characters,
// eight-bit data) is base64-encoded after a double colon.
func encodeLine(attr string, value []byte) string {
	if safeValue(value) {
		return fmt.Sprintf("%s: %s", attr, value)
	}
	return fmt.Sprintf("%s:: %s", attr, base64.StdEncoding.EncodeToString(value))
}

// Whether a value can be written without base64 encoding. Safe characters
// are printable ASCII excluding space, '<' and ':'.
func safeValue(value []byte) bool {
	for _, c := range value {
		if c < 0x20 || c >= 0x80 || c == ' ' || c == '<' || c == ':' {
			return false
		}
	}
	return true
}
