// Package middleware groups the HTTP middleware of the API server.
//
//   - auth: API key validation for every route registered after it.
//   - rayid: a per-request trace id (RayID) stored in the context locals and
//     echoed in the X-Ray-ID response header.
//
// Register rayid first so that every log line of a request carries its id.
package middleware
