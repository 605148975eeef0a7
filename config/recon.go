package config

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recognized environment surface for the reconciliation engine:
// - RECON_CLIENT_ID            client identifier (default recon-backend-<uuid>)
// - RECON_CONSUMER_GROUP       consumer group id (default reconciliation-group)
// - RECON_WINDOW_MS            correlation window (default 300000)
// - RECON_SWEEP_INTERVAL_MS    pending sweep interval (default 60000)
// - RECON_REQUIRED_SOURCES     comma list (default APP,BANK,GATEWAY)

func ReconClientID() string {
	if v := strings.TrimSpace(os.Getenv("RECON_CLIENT_ID")); v != "" {
		return v
	}
	return "recon-backend-" + uuid.NewString()
}

func ReconConsumerGroup() string {
	if v := strings.TrimSpace(os.Getenv("RECON_CONSUMER_GROUP")); v != "" {
		return v
	}
	return "reconciliation-group"
}

func ReconWindow() time.Duration {
	return time.Duration(intFromEnv("RECON_WINDOW_MS", 300000)) * time.Millisecond
}

func ReconSweepInterval() time.Duration {
	return time.Duration(intFromEnv("RECON_SWEEP_INTERVAL_MS", 60000)) * time.Millisecond
}

func ReconRequiredSources() []string {
	raw := strings.TrimSpace(os.Getenv("RECON_REQUIRED_SOURCES"))
	if raw == "" {
		return []string{"APP", "BANK", "GATEWAY"}
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{"APP", "BANK", "GATEWAY"}
	}
	return out
}
