// Package output renders HTTP responses for the command line.
//
// Supported output formats:
//   - Console: status line colored by status class, optional headers,
//     JSON bodies pretty printed
//   - JSON: one machine-readable document per response holding the status,
//     transfer metadata, headers and the decoded body
//
// Both formatters implement Formatter and print captured values after the
// response.
package output
