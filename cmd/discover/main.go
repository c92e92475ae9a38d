// Command discover resolves company names to LinkedIn company pages from the
// command line, using the same engine and configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/data"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/injector"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
	priority   = flag.String("priority", "normal", "request priority: high or normal")
	timeout    = flag.Duration("timeout", time.Minute, "overall timeout")
	invalidate = flag.Bool("invalidate", false, "invalidate the cached entry before searching")
	status     = flag.Bool("status", false, "print queue and quota status and exit")
	verbose    = flag.Bool("v", false, "debug logging")
)

type result struct {
	CompanyName string                  `json:"company_name"`
	Results     []types.CandidateResult `json:"results,omitempty"`
	ManualEntry bool                    `json:"manual_entry,omitempty"`
	Reason      string                  `json:"reason,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <company name>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 && !*status {
		flag.Usage()
		os.Exit(2)
	}

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// housekeeping belongs to the long running server
	config.Discovery.Housekeeping.Enabled = false

	// stdout carries the JSON results
	opts := []logger.Option{logger.WithOutput(logger.OutputStderr), logger.WithFormat(logger.FormatConsole)}
	if *verbose {
		opts = append(opts, logger.WithLevel("debug"))
	}
	log, err := logger.New(logger.Override(&config.Log, opts...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(config, log); err != nil {
		log.Error("discover failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(config *conf.Config, log *logger.Logger) error {
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := injector.NewEngine(config, d, log)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Stop(ctx); err != nil {
			log.Warn("engine shutdown incomplete", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *status {
		st, err := engine.UseCase.QueueStatus(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(st)
	}

	p := types.ParsePriority(*priority)
	for _, name := range flag.Args() {
		if *invalidate {
			if err := engine.UseCase.InvalidateCache(ctx, name); err != nil {
				return err
			}
		}

		out := result{CompanyName: types.DisplayTerm(name)}
		results, err := engine.UseCase.Discover(ctx, name, p)
		switch {
		case err == nil:
			out.Results = results
		case errors.Is(err, types.ErrInvalidInput):
			out.Error = err.Error()
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, types.ErrDispatcherClosed):
			return err
		default:
			out.ManualEntry = true
			out.Reason = types.ManualEntryReason(err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}
