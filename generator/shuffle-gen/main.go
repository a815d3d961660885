// shuffle-gen creates shuffle tasks for local tests of shuffle-worker. It
// can write them to files or serve them as a mock scheduler.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/generator"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

var taskFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "cards, n",
		Value: deck.StandardSize,
		Usage: "number of cards in the deck",
	},
	cli.IntFlag{
		Name:  "public, p",
		Value: deck.PublicCards,
		Usage: "number of public cards, left out of the commitment",
	},
	cli.StringFlag{
		Name:  "seed",
		Usage: "hex seed for a reproducible task, random if empty",
	},
}

var cmds = cli.Commands{
	{
		Name:    "generate",
		Usage:   "write a task and its hex rendering to files",
		Aliases: []string{"g"},
		Flags: append([]cli.Flag{
			cli.StringFlag{
				Name:  "out, o",
				Value: ".",
				Usage: "output directory",
			},
		}, taskFlags...),
		Action: generate,
	},
	{
		Name:    "serve",
		Usage:   "serve a task over http and check the responses",
		Aliases: []string{"s"},
		Flags: append([]cli.Flag{
			cli.StringFlag{
				Name:  "listen, l",
				Value: "localhost:8000",
				Usage: "address to listen on",
			},
			cli.IntFlag{
				Name:  "count",
				Value: 1,
				Usage: "stop after this many responses, 0 to serve until interrupted",
			},
		}, taskFlags...),
		Action: serve,
	},
}

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "shuffle-gen"
	cliApp.Usage = "Create test tasks for shuffle-worker."
	cliApp.Version = "0.1"
	cliApp.Commands = cmds
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

func options(c *cli.Context) (io.Reader, generator.Options, error) {
	opts := generator.Options{
		Cards:       c.Int("cards"),
		PublicCards: c.Int("public"),
	}
	seed := random.Bits(256, false, random.New())
	if s := c.String("seed"); s != "" {
		var err error
		seed, err = hex.DecodeString(s)
		if err != nil {
			return nil, opts, xerrors.Errorf("invalid seed: %w", err)
		}
	}
	return blake2xb.New(seed), opts, nil
}

func generate(c *cli.Context) error {
	rng, opts, err := options(c)
	if err != nil {
		return err
	}
	res, err := generator.Generate(context.Background(), rng, opts)
	if err != nil {
		return err
	}
	dir := c.String("out")
	if err := generator.WriteFiles(dir, res); err != nil {
		return err
	}
	log.Info("Wrote a task of", len(res.Task.Deck), "cards to", dir)
	return nil
}

func serve(c *cli.Context) error {
	rng, opts, err := options(c)
	if err != nil {
		return err
	}
	res, err := generator.Generate(context.Background(), rng, opts)
	if err != nil {
		return err
	}
	s := generator.NewScheduler(res, opts)

	l, err := net.Listen("tcp", c.String("listen"))
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s}
	go srv.Serve(l)
	defer srv.Close()
	log.Info("Serving a task of", len(res.Task.Deck), "cards, run the worker with")
	log.Info(fmt.Sprintf("INPUT=http://%s/ shuffle-worker", l.Addr()))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	count := c.Int("count")
	seen := 0
	for {
		select {
		case <-s.Posted():
			results := s.Results()
			for _, r := range results[seen:] {
				if r.Err != nil {
					log.Info("Rejected response:", r.Err)
				} else {
					log.Info("Accepted response with", len(r.Response.Deck), "cards")
				}
			}
			seen = len(results)
			if count > 0 && seen >= count {
				return nil
			}
		case sig := <-sigs:
			log.Lvl1("received", sig)
			return nil
		}
	}
}
