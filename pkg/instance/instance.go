package instance

import (
	"os"

	"github.com/angelmondragon/foodapp-backend/pkg/env"
)

const fallbackID = "local"

// GetID identifies the running replica in logs and lock ownership.
// FOODAPP_INSTANCE_ID wins over the container hostname.
func GetID() string {
	if id := env.Get("FOODAPP_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
