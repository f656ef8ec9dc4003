// Package builtin provides the functions usable as {{name(args)}}
// placeholders on the hitclient command line.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current UTC time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time in seconds or milliseconds
//   - date(layout): Current UTC date, Go layout, 2006-01-02 by default
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - base64(value), base64Decode(value): Base64 encoding
//   - basicAuth(user, password): Credentials for a Basic Authorization header
//   - md5(value), sha256(value): Hex digests
//   - urlEncode(value), urlDecode(value): Query escaping
package builtin
