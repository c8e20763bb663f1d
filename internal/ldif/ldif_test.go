package ldif

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMarshalOrdersParentsFirst(t *testing.T) {
	entries := []Entry{
		{DN: "ou=sub,ou=test,dc=example,dc=org", Attributes: map[string][][]byte{
			"objectClass": {[]byte("organizationalUnit")},
		}},
		{DN: "dc=example,dc=org", Attributes: map[string][][]byte{
			"objectClass": {[]byte("dcObject")},
		}},
		{DN: "ou=test,dc=example,dc=org", Attributes: map[string][][]byte{
			"objectClass": {[]byte("organizationalUnit")},
		}},
	}

	out := string(Marshal(entries))

	if !strings.HasPrefix(out, "version: 1\n\n") {
		t.Fatalf("missing version header:\n%s", out)
	}

	root := strings.Index(out, "dn: dc=example,dc=org")
	mid := strings.Index(out, "dn: ou=test,dc=example,dc=org")
	leaf := strings.Index(out, "dn: ou=sub,ou=test,dc=example,dc=org")
	if root < 0 || mid < 0 || leaf < 0 {
		t.Fatalf("missing dn lines:\n%s", out)
	}
	if !(root < mid && mid < leaf) {
		t.Fatalf("entries not ordered parent-first:\n%s", out)
	}
}

func TestMarshalEncodesBinaryValues(t *testing.T) {
	entries := []Entry{
		{DN: "ou=test,dc=example,dc=org", Attributes: map[string][][]byte{
			"description": {{0xde, 0xad, 0xbe, 0xef}},
		}},
	}

	out := string(Marshal(entries))
	if !strings.Contains(out, "description:: 3q2+7w==") {
		t.Fatalf("binary value not base64-encoded:\n%s", out)
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	entries := []Entry{
		{DN: "dc=example,dc=org", Attributes: map[string][][]byte{
			"objectClass": {[]byte("dcObject"), []byte("organization")},
			"dc":          {[]byte("example")},
			"description": {[]byte("with space and unicode \xc3\xa9")},
		}},
	}

	parsed, err := Unmarshal(Marshal(entries))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d entries, want 1", len(parsed))
	}

	got := parsed[0]
	if got.DN != "dc=example,dc=org" {
		t.Errorf("DN = %q", got.DN)
	}
	if len(got.Attributes["objectClass"]) != 2 {
		t.Errorf("objectClass values = %v", got.Attributes["objectClass"])
	}
	if !bytes.Equal(got.Attributes["description"][0], entries[0].Attributes["description"][0]) {
		t.Errorf("description = %q", got.Attributes["description"][0])
	}
}

func TestUnmarshalSearchOutput(t *testing.T) {
	// Shape produced by ldapsearch -LLL: no version header, plain values.
	input := []byte("dn: ou=people,dc=example,dc=org\nobjectClass: organizationalUnit\nou: people\n")

	entries, err := Unmarshal(input)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].DN != "ou=people,dc=example,dc=org" {
		t.Errorf("DN = %q", entries[0].DN)
	}
	if string(entries[0].Attributes["ou"][0]) != "people" {
		t.Errorf("ou = %q", entries[0].Attributes["ou"][0])
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unparseable line", "dn: dc=example,dc=org\nnot a valid line\n"},
		{"bad version", "version: 2\n\ndn: dc=example,dc=org\n"},
		{"bad base64", "dn: dc=example,dc=org\ndescription:: !!!\n"},
		{"missing dn", "objectClass: organizationalUnit\nou: people\n"},
		{"second record missing dn", "dn: dc=example,dc=org\ndc: example\n\nou: people\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.input)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
