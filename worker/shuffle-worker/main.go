// shuffle-worker fetches one shuffle task, proves it and submits the result
// to the same endpoint. It exits with a non-zero status if anything fails,
// in which case nothing has been submitted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover/worker"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "shuffle-worker"
	cliApp.Usage = "Prove the shuffle of an encrypted deck."
	cliApp.Version = "0.1"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "SHUFFLE_WORKER_CONFIG",
			Usage:  "toml configuration file, defaults are used if empty",
		},
		cli.StringFlag{
			Name:   "endpoint, e",
			EnvVar: "INPUT",
			Usage:  "task URL, overrides the configuration",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	cliApp.Action = run
	log.ErrFatal(cliApp.Run(os.Args))
}

func run(c *cli.Context) error {
	cfg := worker.DefaultConfig()
	if fn := c.String("config"); fn != "" {
		var err error
		cfg, err = worker.LoadConfig(fn)
		if err != nil {
			return err
		}
	}
	if ep := c.String("endpoint"); ep != "" {
		cfg.Endpoint = ep
	}

	rng := blake2xb.New(random.Bits(256, false, random.New()))
	o, err := cfg.NewOrchestrator(rng)
	if err != nil {
		return xerrors.Errorf("configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigs:
			log.Lvl1("received", s, "aborting")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Lvlf1("%s: running task %s", o.ID(), cfg.Endpoint)
	if err := o.Run(ctx, cfg.Endpoint); err != nil {
		return err
	}
	log.Info("Submitted the shuffle proof to", cfg.Endpoint)
	return nil
}
