// Package fetch turns image references into raw bytes.
//
// Two reference forms are handled:
//   - Remote URLs (http, https), fetched by HTTPFetcher
//   - Data URLs of the form "data:<mime>;base64,<payload>", parsed by ParseDataURL
//
// Neither decodes the bytes as an image; that is left to the caller.
// HTTPFetcher imposes no retry policy. Cancellation and deadlines flow in
// through the context passed to FetchBytes.
package fetch
