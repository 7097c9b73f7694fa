package models

// API wire types

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// ServiceInfo is returned by GET /
type ServiceInfo struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	Features       []string          `json:"features"`
	Authentication string            `json:"authentication"`
	Endpoints      map[string]string `json:"endpoints"`
	FreeTier       string            `json:"free_tier"`
	Status         string            `json:"status"`
}

// Quota/response header names shared by success and rejection paths.
const (
	HeaderQuotaUsed     = "X-Quota-Used"
	HeaderQuotaLimit    = "X-Quota-Limit"
	HeaderQuotaReset    = "X-Quota-Reset"
	HeaderAuthenticated = "X-Authenticated"
	HeaderRequestID     = "X-Request-ID"
	HeaderAPIKey        = "X-API-Key"
)
