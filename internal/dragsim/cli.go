package dragsim

import (
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/pickem/pkg/logger"
)

// Default flag values.
const (
	defaultUsers    = 20
	defaultGestures = 50
	defaultTimeout  = 10 * time.Second
	defaultSaveWait = 5 * time.Second
)

// NewApp builds the dragsim command line. log receives progress and the
// final statistics.
func NewApp(log logger.Logger) *cli.App {
	return &cli.App{
		Name:  "dragsim",
		Usage: "drive random drag gestures against a pickem server and verify the standings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service", EnvVars: []string{"DRAGSIM_URL"}},
			&cli.IntFlag{Name: "users", Value: defaultUsers, Usage: "number of simulated users"},
			&cli.IntFlag{Name: "gestures", Value: defaultGestures, Usage: "gestures per user"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "users simulated concurrently"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "HTTP request timeout"},
			&cli.Int64Flag{Name: "seed", Value: time.Now().UnixNano(), DefaultText: "now", Usage: "faker seed; reuse it to replay a run"},
			&cli.DurationFlag{Name: "save-wait", Value: defaultSaveWait, Usage: "how long to wait for a manual save to land"},
			&cli.StringFlag{Name: "output", Usage: "write a JSON report to this path"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every gesture"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("verbose") {
				_ = logger.SetLevelString("debug")
			}
			cfg := &Config{
				BaseURL:  c.String("url"),
				Users:    c.Int("users"),
				Gestures: c.Int("gestures"),
				Workers:  c.Int("workers"),
				Timeout:  c.Duration("timeout"),
				Seed:     c.Int64("seed"),
				SaveWait: c.Duration("save-wait"),
				Output:   c.String("output"),
				Verbose:  c.Bool("verbose"),
			}
			_, err := Run(c.Context, cfg, log)
			return err
		},
	}
}
