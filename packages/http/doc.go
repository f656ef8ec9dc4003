// Package http is a configurable request builder and response wrapper.
//
// A Request holds the URL, method, parameters, headers, file attachments and
// transport options of a call and encodes them for a Transport:
//   - GET, HEAD, DELETE, OPTIONS and TRACE append the params to the URL
//   - POST sends mapping params as multipart/form-data and raw params as an
//     urlencoded body
//   - every other method sends an urlencoded body with a verb override
//
// The Transport returns the raw header block and body plus transfer
// metadata, which NewResponse splits into status, headers, content type and
// a body decoded by the codec matching the expected type.
//
// Client wraps a Request with a base URL and adds logging, metrics, rate
// limiting and request ids.
package http
