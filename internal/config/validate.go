package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks required fields and value ranges.
func (c *HarnessConfig) Validate() error {
	if c.Target.WSURL == "" {
		return fmt.Errorf("target.ws_url is required")
	}

	u, err := url.Parse(c.Target.WSURL)
	if err != nil {
		return fmt.Errorf("target.ws_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("target.ws_url scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.Target.AuthURL != "" && !strings.HasPrefix(c.Target.AuthURL, "http") {
		return fmt.Errorf("target.auth_url must be an http(s) URL")
	}

	if c.Race.Trials < 1 {
		return fmt.Errorf("race.trials must be at least 1")
	}
	if c.Race.Concurrency < 1 {
		return fmt.Errorf("race.concurrency must be at least 1")
	}

	if c.Recorder.Enabled {
		db := c.Recorder.Postgres
		if db.Host == "" || db.Name == "" || db.User == "" {
			return fmt.Errorf("recorder.postgres host, name and user are required when the recorder is enabled")
		}
	}

	return nil
}
