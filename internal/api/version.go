// Package api provides the HTTP handlers of the xcafe backend.
package api

// APIVersion represents the current API version supported by this server.
// Clients read api_version from /status to detect available features.
//
// REST endpoints live under /api/... with no version prefix.
const (
	// APIVersion1 is the first wallet-auth API.
	APIVersion1 = 1

	// CurrentAPIVersion is the highest API version supported by this server.
	CurrentAPIVersion = APIVersion1
)

// APICapabilities describes the features available at each API version.
var APICapabilities = map[int][]string{
	APIVersion1: {
		"wallet-auth",
		"admin-registry",
		"logout",
		"events", // admin event stream at /ws/events
	},
}

// StatusResponse is the response from the /status endpoint.
type StatusResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	APIVersion   int      `json:"api_version"`
	Capabilities []string `json:"capabilities,omitempty"`
}
