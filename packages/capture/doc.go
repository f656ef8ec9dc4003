// Package capture extracts named values from a response.
//
// A capture is written name=source[.path], where source is one of:
//   - body, with an optional gjson path (body.items.0.id)
//   - header, with the header name (header.ETag)
//   - status
//   - duration, in milliseconds
//
// Captured values can be saved as a .env file and read back by a later
// request with --env-file, where they resolve as {{name}} placeholders.
package capture
