// Package ldif converts directory entries to and from the LDIF interchange
// format (RFC 2849, the subset needed to drive an OpenLDAP instance).
//
// An [Entry] maps a distinguished name to attribute values kept as raw
// bytes. [Marshal] emits a "version: 1" document with entries ordered
// shortest DN first, so parents are always written before their children.
// [Unmarshal] parses the output of ldapsearch-style tools as well as our
// own Marshal output, decoding base64 continuation values back to bytes.
package ldif
