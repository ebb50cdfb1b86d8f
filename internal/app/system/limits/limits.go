// internal/app/system/limits/limits.go
package limits

// Request size limits for the API surfaces.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxGraphQLBody is the maximum size of a GraphQL request body.
	// Postings may carry an inline base64 image, hence the generous limit.
	MaxGraphQLBody = 10 << 20 // 10 MB

	// MaxGraphQLDepth bounds selection-set nesting in a single query.
	MaxGraphQLDepth = 10

	// MaxRealtimeMessage is the largest frame a realtime client may send.
	// Clients only send control frames.
	MaxRealtimeMessage = 512
)
