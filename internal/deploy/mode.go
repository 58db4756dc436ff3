// Package deploy describes the deployment modes the server can run in.
package deploy

import (
	"fmt"
	"strings"
)

type Mode string

const (
	Production  Mode = "production"
	Development Mode = "development"
	Test        Mode = "test"
)

// ParseMode accepts full and short names ("prod", "dev")
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "production", "prod":
		return Production, nil
	case "development", "dev":
		return Development, nil
	case "test":
		return Test, nil
	default:
		return "", fmt.Errorf("unknown environment %q", value)
	}
}

func (m Mode) String() string { return string(m) }

// Failed auth attempts are throttled in production only
func (m Mode) RateLimitAuth() bool { return m == Production }

// Stack traces are rendered to clients everywhere but production
func (m Mode) ExposeStack() bool { return m != Production }

// Access log is too noisy for tests
func (m Mode) LogRequests() bool { return m != Test }
