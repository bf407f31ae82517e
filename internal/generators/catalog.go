package generators

import "strings"

// DefaultServices is the simulated service mesh used when none is configured.
var DefaultServices = []string{
	"api-gateway",
	"auth-service",
	"user-service",
	"order-service",
	"payment-service",
	"inventory-service",
	"notification-service",
	"search-service",
}

var defaultOperations = map[string][]string{
	"api-gateway":          {"GET /api/orders", "POST /api/orders", "GET /api/users/{id}", "GET /api/search"},
	"auth-service":         {"ValidateToken", "IssueToken", "RefreshSession"},
	"user-service":         {"GetUser", "UpdateProfile", "SELECT users"},
	"order-service":        {"CreateOrder", "GetOrder", "INSERT orders"},
	"payment-service":      {"AuthorizePayment", "CapturePayment", "POST /v1/charges"},
	"inventory-service":    {"ReserveStock", "ReleaseStock", "SELECT inventory"},
	"notification-service": {"SendEmail", "SendPush", "kafka.produce notifications"},
	"search-service":       {"Query", "IndexDocument", "GET /_search"},
}

var genericOperations = []string{"handle", "process", "query"}

var spanErrorMessages = []string{
	"connection refused",
	"context deadline exceeded",
	"upstream returned 503",
	"database lock timeout",
	"invalid response payload",
}

var ackUsers = []string{"alice@oncall", "bob@oncall", "carol@oncall", "dave@oncall", "sre-bot"}

func operationsFor(catalog map[string][]string, service string) []string {
	if ops, ok := catalog[service]; ok && len(ops) > 0 {
		return ops
	}
	if ops, ok := defaultOperations[service]; ok {
		return ops
	}
	return genericOperations
}

func componentFor(operation string) string {
	switch {
	case strings.HasPrefix(operation, "GET ") || strings.HasPrefix(operation, "POST ") ||
		strings.HasPrefix(operation, "PUT ") || strings.HasPrefix(operation, "DELETE "):
		return "http"
	case strings.HasPrefix(operation, "SELECT ") || strings.HasPrefix(operation, "INSERT "):
		return "db"
	case strings.HasPrefix(operation, "kafka."):
		return "messaging"
	default:
		return "grpc"
	}
}
