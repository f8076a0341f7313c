// Package jsonval encodes and decodes the JSON values kept in the store.
//
// Values are written in a deterministic form so that the same logical value
// always occupies the same bytes on disk and the value-size limit is checked
// against exactly what gets stored:
//   - Object keys sorted by UTF-16 code units (RFC 8785 ordering)
//   - No insignificant whitespace
//   - No HTML escaping (< > & are written literally)
//   - Strings and object keys kept exactly as given
//   - Numbers kept in their textual form (json.Number), never rounded
//
// Decoding always uses json.Number, so integers larger than 2^53 survive a
// round trip through the store.
package jsonval
