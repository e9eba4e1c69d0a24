package domain

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"

	UpstreamConnected    = "connected"
	UpstreamDisconnected = "disconnected"
)

// HealthStatus reports the server's view of the upstream runtime.
type HealthStatus struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Error    string `json:"error,omitempty"`
}
