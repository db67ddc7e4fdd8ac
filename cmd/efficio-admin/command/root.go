// Package command defines the efficio-admin command tree.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

const clientKey = "redis"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:  "efficio-admin",
		Usage: "efficio maintenance tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address",
				EnvVars: []string{"EFFICIO_REDIS_ADDR"},
				Value:   "127.0.0.1:6379",
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{"EFFICIO_REDIS_PASSWORD"},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{"EFFICIO_REDIS_DB"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall command timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			FlushCommand(),
			StatsCommand(),
			PingCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, ok := c.App.Metadata[clientKey]; ok {
				return nil
			}
			c.App.Metadata[clientKey] = redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs:    []string{c.String("redis-addr")},
				Password: c.String("redis-password"),
				DB:       c.Int("redis-db"),
			})
			return nil
		},
		After: func(c *cli.Context) error {
			if client, ok := c.App.Metadata[clientKey].(redis.UniversalClient); ok {
				return client.Close()
			}
			return nil
		},
	}
}

// newEngine builds an engine on the client installed by Before. configure
// adjusts the default configuration.
func newEngine(c *cli.Context, configure func(*efficio.Config)) (*efficio.Engine, error) {
	client, ok := c.App.Metadata[clientKey].(redis.UniversalClient)
	if !ok {
		return nil, errors.New("redis client not initialized")
	}

	cfg := efficio.DefaultConfig()
	if configure != nil {
		configure(&cfg)
	}
	return efficio.New().WithConfig(cfg).WithRedis(client).Build()
}

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
