package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/adrelay/adrelay-go/internal/config"
	"github.com/adrelay/adrelay-go/internal/telemetry"
	"github.com/adrelay/adrelay-go/sdk"
)

func bodyFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "body",
		Usage:    "JSON request body, @file to read it from a file or - for stdin",
		Required: required,
	}
}

func idempotencyKeyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "idempotency-key",
		Usage: "Idempotency-Key sent with every attempt",
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	var shutdown telemetry.Shutdown

	return &cli.App{
		Name:            "adrelay",
		Usage:           "call the AdRelay decision API",
		Version:         sdk.Version,
		Reader:          stdin,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		// errors are reported by run
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"ADRELAY_CONFIG"},
			},
			&cli.StringFlag{Name: "base-url", Usage: "API base URL"},
			&cli.DurationFlag{Name: "timeout", Usage: "deadline for each attempt"},
			&cli.IntFlag{Name: "max-retries", Usage: "retries after the first attempt"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every attempt and retry"},
		},
		Before: func(c *cli.Context) error {
			telCfg := telemetry.NewConfigFromEnv("adrelay")
			if os.Getenv("LOG_FORMAT") == "" {
				telCfg.LogFormat = "text"
			}
			if c.Bool("verbose") {
				telCfg.LogLevel = "debug"
			}

			var err error
			shutdown, err = telemetry.Init(c.Context, telCfg)
			if err != nil {
				return err
			}
			telemetry.SetLogger(telemetry.NewLogger(telCfg, c.App.ErrWriter))
			return nil
		},
		After: func(c *cli.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(c.Context)
		},
		Commands: []*cli.Command{
			{
				Name:  "decide",
				Usage: "request an ad decision (POST " + sdk.DecidePath + ")",
				Flags: []cli.Flag{bodyFlag(true)},
				Action: func(c *cli.Context) error {
					return call(c, sdk.MethodPost, sdk.DecidePath, nil)
				},
			},
			{
				Name:  "event",
				Usage: "track an impression, click or conversion (POST " + sdk.EventsPath + ")",
				Flags: []cli.Flag{bodyFlag(true), idempotencyKeyFlag()},
				Action: func(c *cli.Context) error {
					return call(c, sdk.MethodPost, sdk.EventsPath, nil)
				},
			},
			{
				Name:      "request",
				Usage:     "send an arbitrary request",
				ArgsUsage: "<GET|POST> <path>",
				Flags: []cli.Flag{
					bodyFlag(false),
					idempotencyKeyFlag(),
					&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "extra header as key=value"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return fmt.Errorf("request needs a method and a path, got %d arguments", c.Args().Len())
					}
					headers, err := parseHeaders(c.StringSlice("header"))
					if err != nil {
						return err
					}
					return call(c, strings.ToUpper(c.Args().Get(0)), c.Args().Get(1), headers)
				},
			},
		},
	}
}

// newClient builds a client from the config file, env and flags, in
// increasing precedence
func newClient(c *cli.Context) (*sdk.Client, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("base-url") {
		cfg.WithBaseURL(c.String("base-url"))
	}
	if c.IsSet("timeout") {
		cfg.WithTimeout(c.Duration("timeout"))
	}
	if c.IsSet("max-retries") {
		cfg.WithRetries(c.Int("max-retries"))
	}

	observer, err := telemetry.NewObserver(nil)
	if err != nil {
		return nil, err
	}
	cfg.WithObserver(observer).WithLogger(telemetry.L())

	return sdk.NewClient(cfg)
}

// call sends one request and prints the JSON result
func call(c *cli.Context, method, path string, headers map[string]string) error {
	var body json.RawMessage
	if c.IsSet("body") {
		var err error
		if body, err = readBody(c.String("body"), c.App.Reader); err != nil {
			return err
		}
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := &sdk.RequestOptions{
		Headers:        headers,
		IdempotencyKey: c.String("idempotency-key"),
	}
	if body != nil {
		opts.Body = body
	}

	result, err := sdk.Request[json.RawMessage](c.Context, client, method, path, opts)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, result)
}

// readBody resolves the --body value to a JSON document
func readBody(value string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	switch {
	case value == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(value, "@"):
		b, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		data = b
	default:
		data = []byte(value)
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("body is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// parseHeaders turns key=value pairs into a header map
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", pair)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
