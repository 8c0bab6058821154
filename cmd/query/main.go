package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/matchcast/internal/client"
)

const defaultTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var (
		baseURL = fs.String("url", "http://localhost:5000", "Base URL of the service")
		team    = fs.String("team", "", "Team to predict; lists teams when empty")
		timeout = fs.Duration("timeout", defaultTimeout, "HTTP request timeout")
		asJSON  = fs.Bool("json", false, "Print raw JSON instead of a table")
		stats   = fs.Bool("stats", false, "Print service statistics")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.New(*baseURL, client.WithTimeout(*timeout))
	if err != nil {
		return err
	}

	switch {
	case *stats:
		s, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, s)
	case *team == "":
		teams, err := c.Teams(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(out, teams)
		}
		for _, t := range teams {
			fmt.Fprintln(out, t)
		}
		return nil
	default:
		report, err := c.Predict(ctx, *team)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(out, report)
		}
		return client.WriteReport(out, report)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
