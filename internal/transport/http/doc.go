// Package http implements the HTTP handlers of the analytics server. The
// handlers are a thin layer over the services package: they decode and
// validate requests, call the service and render the result.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → AnalyticsService
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Errors
//
// Every failure is passed to errors.ErrorHandler, which renders RFC 7807
// problem details. Decoding failures become 400 INVALID_REQUEST.
//
// # Output Formats
//
// Endpoints that produce tables accept ?format=json|csv|xlsx. CSV carries
// the primary table of the result; XLSX holds one sheet per table. Both are
// sent as attachments named like the files the command line tools write,
// e.g. continuous_ES_v_0_20250314.csv.
//
// Values that JSON cannot carry (NaN, infinities) are rendered as null in
// frames and as empty cells in CSV and XLSX.
package http
