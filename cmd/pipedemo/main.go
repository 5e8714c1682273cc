// Command pipedemo streams lines from a producer task to forked consumer tasks
// that share the read end of one pipe.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/fdpipe"
	"github.com/jacoelho/fdpipe/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults used when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "pipedemo: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipedemo: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("demo failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	k := fdpipe.NewKernel(cfg.Options(log)...)
	producer := k.Spawn("producer")

	rfd, wfd, err := producer.Pipe()
	if err != nil {
		return err
	}

	consumers := make([]*fdpipe.Task, cfg.Demo.Consumers)
	for i := range consumers {
		c, err := k.Fork(producer, fmt.Sprintf("consumer-%d", i))
		if err != nil {
			return err
		}
		if err := c.Close(wfd); err != nil {
			return err
		}
		consumers[i] = c
	}
	if err := producer.Close(rfd); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		w, err := producer.Writer(wfd)
		if err != nil {
			return err
		}
		defer w.Close()
		for i := range cfg.Demo.Lines {
			if _, err := fmt.Fprintf(w, "%d: %s\n", i, cfg.Demo.Message); err != nil {
				return err
			}
		}
		return nil
	})

	received := make([]int64, len(consumers))
	for i, c := range consumers {
		g.Go(func() error {
			r, err := c.Reader(rfd)
			if err != nil {
				return err
			}
			received[i], err = io.Copy(io.Discard, r)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var total int64
	for i, c := range consumers {
		total += received[i]
		log.Info().Int("pid", c.PID()).Str("task", c.Name()).Int64("bytes", received[i]).Msg("consumer done")
		if err := k.Exit(c); err != nil {
			return err
		}
	}
	if err := k.Exit(producer); err != nil {
		return err
	}

	log.Info().
		Int64("bytes", total).
		Int("lines", cfg.Demo.Lines).
		Int("consumers", len(consumers)).
		Msg("demo complete")
	return nil
}
