// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bpowers/fskv"
	"github.com/bpowers/fskv/codec"
	"github.com/bpowers/fskv/internal/config"
)

const (
	envMetadataKey = "env"

	genHMACKey = "d259c7f656caf7f1"
	genSuffix  = 16

	// maxImportLine bounds a single key:value line read by import.
	maxImportLine = 64 << 20
)

type env struct {
	cfg    config.Config
	logger *slog.Logger
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "fskv",
		Usage:     "inspect and edit a file-per-entry key/value store",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "store directory (env FSKV_ROOT)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.IntFlag{
				Name:  "prefix-len",
				Usage: "digest characters naming a shard directory",
			},
			&cli.StringFlag{
				Name:  "digest",
				Usage: "key digest: sha256, sha1 or farm128",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "key/value encoding: json, yaml or string",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "fsync files and directories after each change",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
		},
		Before: loadEnv,
		Commands: []*cli.Command{
			{
				Name:      "insert",
				Usage:     "add a new mapping; fails if the key exists",
				ArgsUsage: "KEY VALUE",
				Action:    insertAction,
			},
			{
				Name:      "upsert",
				Usage:     "add or replace a mapping",
				ArgsUsage: "KEY VALUE",
				Action:    upsertAction,
			},
			{
				Name:      "lookup",
				Aliases:   []string{"get"},
				Usage:     "print the value stored under KEY",
				ArgsUsage: "KEY",
				Action:    lookupAction,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "delete KEY and print its value",
				ArgsUsage: "KEY",
				Action:    removeAction,
			},
			{
				Name:   "size",
				Usage:  "print the number of mappings",
				Action: sizeAction,
			},
			{
				Name:   "keys",
				Usage:  "print every key",
				Action: keysAction,
			},
			{
				Name:   "check",
				Usage:  "report on-disk inconsistencies without repairing them",
				Action: checkAction,
			},
			{
				Name:      "import",
				Usage:     "insert key:value lines (up to 64 MiB each) from FILE (or - for stdin)",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "upsert",
						Usage: "replace existing keys instead of failing",
					},
				},
				Action: importAction,
			},
			{
				Name:  "gen",
				Usage: "print random key:value lines suitable for import",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1000},
					&cli.StringFlag{Name: "prefix", Value: "pref_"},
					&cli.Int64Flag{Name: "seed", Usage: "0 picks a random seed"},
				},
				Action: genAction,
			},
		},
	}
}

func loadEnv(c *cli.Context) error {
	overrides := make(map[string]any)
	if c.IsSet("root") {
		overrides["root"] = c.String("root")
	}
	if c.IsSet("prefix-len") {
		overrides["prefix_len"] = c.Int("prefix-len")
	}
	if c.IsSet("digest") {
		overrides["digest"] = c.String("digest")
	}
	if c.IsSet("format") {
		overrides["format"] = c.String("format")
	}
	if c.IsSet("sync") {
		overrides["sync"] = c.Bool("sync")
	}
	logOverrides := make(map[string]any)
	if c.IsSet("log-level") {
		logOverrides["level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		logOverrides["format"] = c.String("log-format")
	}
	if len(logOverrides) > 0 {
		overrides["log"] = logOverrides
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(c.App.ErrWriter)
	if err != nil {
		return err
	}
	c.App.Metadata[envMetadataKey] = &env{cfg: cfg, logger: logger}
	return nil
}

func openStore(c *cli.Context) (*fskv.Store[string, string], error) {
	e, ok := c.App.Metadata[envMetadataKey].(*env)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	format, err := codec.ByName(e.cfg.Format)
	if err != nil {
		return nil, err
	}
	opts, err := e.cfg.StoreOptions(e.logger)
	if err != nil {
		return nil, err
	}
	return fskv.Open[string, string](e.cfg.Root, format, format, opts...)
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() != n {
		return fmt.Errorf("%s: want %d argument(s) (%s), got %d", c.Command.Name, n, c.Command.ArgsUsage, c.Args().Len())
	}
	return nil
}

func insertAction(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	return s.Insert(c.Args().Get(0), c.Args().Get(1))
}

func upsertAction(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	replaced, err := s.Upsert(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	if replaced {
		fmt.Fprintln(c.App.Writer, "replaced")
	} else {
		fmt.Fprintln(c.App.Writer, "created")
	}
	return nil
}

func lookupAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	v, err := s.Lookup(c.Args().Get(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, v)
	return nil
}

func removeAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	v, err := s.Remove(c.Args().Get(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, v)
	return nil
}

func sizeAction(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, s.Size())
	return nil
}

func keysAction(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	return s.Range(func(key, _ string) error {
		_, err := fmt.Fprintln(c.App.Writer, key)
		return err
	})
}

func checkAction(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	report, err := s.Check()
	if err != nil {
		return err
	}
	for _, p := range report.Problems {
		fmt.Fprintln(c.App.Writer, p)
	}
	fmt.Fprintf(c.App.Writer, "entries=%d size=%d problems=%d\n", report.Entries, report.Size, len(report.Problems))
	if !report.OK() {
		return fmt.Errorf("check: %d problem(s) found", len(report.Problems))
	}
	return nil
}

func importAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}

	var r io.Reader
	if path := c.Args().Get(0); path == "-" {
		r = c.App.Reader
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}

	upsert := c.Bool("upsert")
	imported := 0
	lineNo := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		k, v, ok := bytes.Cut(line, []byte{':'})
		if !ok {
			return fmt.Errorf("line %d: expected key:value", lineNo)
		}
		if upsert {
			_, err = s.Upsert(string(k), string(v))
		} else {
			err = s.Insert(string(k), string(v))
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		imported++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "imported %d entries (size %d)\n", imported, s.Size())
	return nil
}

func genAction(c *cli.Context) error {
	seed := c.Int64("seed")
	if seed == 0 {
		var seedBytes [8]byte
		if _, err := crand.Read(seedBytes[:]); err != nil {
			return fmt.Errorf("crypto/rand: %w", err)
		}
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	rng := rand.New(rand.NewSource(seed))
	h := hmac.New(sha256.New, []byte(genHMACKey))
	w := bufio.NewWriter(c.App.Writer)
	prefix := c.String("prefix")

	for i := 0; i < c.Int("count"); i++ {
		var buf [genSuffix / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Sprintf("%s%x", prefix, buf)
		h.Reset()
		h.Write([]byte(value))
		key := hex.EncodeToString(h.Sum(nil))

		if _, err := fmt.Fprintf(w, "%s:%s\n", key, value); err != nil {
			return err
		}
	}
	return w.Flush()
}
