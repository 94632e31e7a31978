package instance

import "os"

// EnvID overrides the process identifier.
const EnvID = "SHELFPOS_INSTANCE_ID"

// GetID returns the identifier this process logs under: EnvID when set,
// otherwise the host name, otherwise "local".
func GetID() string {
	if id := os.Getenv(EnvID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
