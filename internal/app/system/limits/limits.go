// internal/app/system/limits/limits.go
package limits

// Size limits for request and response bodies passing through the edge.
// These bound memory use, since bodies are buffered whole.
const (
	// MaxInterceptedRequestBody is the most of an intercepted request body
	// that is forwarded upstream.
	MaxInterceptedRequestBody = 10 << 20 // 10 MB

	// MaxFetchedResponseBody is the largest upstream response body that is
	// read into a snapshot. Larger bodies fail the fetch.
	MaxFetchedResponseBody = 32 << 20 // 32 MB

	// MaxStoredDocumentBody is the largest body the MongoDB backend stores.
	// It stays under the 16 MB BSON document cap with room for headers.
	MaxStoredDocumentBody = 15 << 20 // 15 MB
)
