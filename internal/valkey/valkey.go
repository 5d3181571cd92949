// Package valkey manages the optional Valkey connection used to mirror presence state.
package valkey

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Connect parses the Valkey URL, connects, and pings to verify the server is reachable. Because go-redis only
// understands the redis:// scheme, a valkey:// scheme is rewritten before parsing.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse valkey URL: %w", err)
	}
	if strings.EqualFold(parsed.Scheme, "valkey") {
		parsed.Scheme = "redis"
	}

	opts, err := redis.ParseURL(parsed.String())
	if err != nil {
		return nil, fmt.Errorf("parse valkey URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return client, nil
}
