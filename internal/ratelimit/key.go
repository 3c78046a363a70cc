package ratelimit

import "strings"

// KeyFor builds a limiter key for a client within a scope.
func KeyFor(scope Scope, clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if scope == "" || clientID == "" {
		return ""
	}
	return string(scope) + ":" + clientID
}
