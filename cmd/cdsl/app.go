// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"

	"github.com/ianlewis/go-cdsl"
	"github.com/ianlewis/go-cdsl/internal/config"
	"github.com/ianlewis/go-cdsl/remote"
	"github.com/ianlewis/go-cdsl/translit"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrCdsl is a parent error for all command errors.
var ErrCdsl = errors.New("cdsl")

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = fmt.Errorf("%w: parsing flags", ErrCdsl)

var copyrightNames = []string{
	"2025 Ian Lewis",
}

// Keys of the app metadata.
const (
	configKey = "config"
	loggerKey = "logger"
	corpusKey = "corpus"
)

// check checks the error and panics if not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

func usageError(_ *cli.Context, err error, _ bool) error {
	return fmt.Errorf("%w: %w", ErrFlagParse, err)
}

func newCdslApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Search the Cologne Digital Sanskrit Dictionaries.",
		Description: strings.Join([]string{
			"CDSL dictionary manager and search tool written in Go.",
			"http://github.com/ianlewis/go-cdsl",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "read configuration from `FILE`",
				Aliases: []string{"c"},
				EnvVars: []string{config.EnvPath},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "store dictionaries in `DIR`",
				Aliases: []string{"d"},
			},
			&cli.StringFlag{
				Name:    "input",
				Usage:   "transliteration `SCHEME` of search patterns",
				Aliases: []string{"i"},
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "transliteration `SCHEME` of results",
				Aliases: []string{"o"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log `LEVEL` (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log `FORMAT` (text, json)",
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				Aliases:            []string{"V"},
				DisableDefaultText: true,
			},
		},
		Copyright:       strings.Join(copyrightNames, "\n"),
		HideHelpCommand: true,
		Metadata:        map[string]interface{}{},
		OnUsageError:    usageError,
		Before:          loadConfig,
		After:           closeCorpus,
		Action: func(c *cli.Context) error {
			if c.Bool("version") {
				return printVersion(c)
			}

			check(cli.ShowAppHelp(c))
			return nil
		},
		Commands: []*cli.Command{
			availableCommand,
			dictsCommand,
			setupCommand,
			updateCommand,
			rebuildCommand,
			searchCommand,
			showCommand,
			statsCommand,
			infoCommand,
			dumpCommand,
			exportCommand,
			schemesCommand,
			versionCommand,
		},
	}
}

// loadConfig loads the configuration and applies the global flags.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCdsl, err)
	}

	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if s := c.String("input"); s != "" {
		cfg.Search.InputScheme = s
	}
	if s := c.String("output"); s != "" {
		cfg.Search.OutputScheme = s
	}
	if s := c.String("log-level"); s != "" {
		cfg.Log.Level = s
	}
	if s := c.String("log-format"); s != "" {
		cfg.Log.Format = s
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlagParse, err)
	}

	c.App.Metadata[configKey] = cfg
	c.App.Metadata[loggerKey] = newLogger(c.App.ErrWriter, cfg.Log)
	return nil
}

// newLogger returns a logger writing to w in the configured format.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func appConfig(c *cli.Context) *config.Config {
	//nolint:forcetypeassert // set in loadConfig
	return c.App.Metadata[configKey].(*config.Config)
}

func appLogger(c *cli.Context) *slog.Logger {
	//nolint:forcetypeassert // set in loadConfig
	return c.App.Metadata[loggerKey].(*slog.Logger)
}

// openCorpus opens the corpus in the configured data directory. The corpus
// is opened once and closed when the app exits.
func openCorpus(c *cli.Context) (*cdsl.Corpus, error) {
	if corpus, ok := c.App.Metadata[corpusKey].(*cdsl.Corpus); ok {
		return corpus, nil
	}

	cfg := appConfig(c)
	log := appLogger(c)

	dataDir := cfg.DataDir
	if dataDir == "" {
		var err error
		if dataDir, err = defaultDataDir(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCdsl, err)
		}
	}
	mode, err := cdsl.ParseMode(cfg.Search.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCdsl, err)
	}

	client, err := remote.NewClient(&remote.Options{
		ServerURL:         cfg.Server.URL,
		ArchiveSuffix:     cfg.Server.ArchiveSuffix,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		UserAgent:         cfg.Server.UserAgent,
		Progress:          newProgress(log),
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCdsl, err)
	}

	corpus, err := cdsl.New(c.Context, &cdsl.Options{
		DataDir:             dataDir,
		DefaultDictionaries: cfg.Dictionaries,
		InputScheme:         translit.Scheme(cfg.Search.InputScheme),
		OutputScheme:        translit.Scheme(cfg.Search.OutputScheme),
		Mode:                mode,
		EnglishDictionaries: cfg.Search.EnglishDictionaries,
		KeepKeys:            cfg.Search.KeepKeys,
		Workers:             cfg.Install.Workers,
		Timeout:             cfg.Install.Timeout,
		Registry:            client,
		Transport:           client,
		Logger:              log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCdsl, err)
	}
	c.App.Metadata[corpusKey] = corpus
	return corpus, nil
}

func closeCorpus(c *cli.Context) error {
	corpus, ok := c.App.Metadata[corpusKey].(*cdsl.Corpus)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, corpusKey)
	if err := corpus.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCdsl, err)
	}
	return nil
}

// newProgress returns a download progress callback that logs every
// megabyte downloaded.
func newProgress(log *slog.Logger) remote.ProgressFunc {
	const step = 1 << 20

	var mu sync.Mutex
	logged := map[string]int64{}
	return func(url string, written, total int64) {
		mu.Lock()
		defer mu.Unlock()

		done := total > 0 && written >= total
		if written/step == logged[url] && !done {
			return
		}
		logged[url] = written / step
		if done {
			delete(logged, url)
		}
		log.Info("downloading",
			"url", url,
			"written", humanize.Bytes(uint64(written)),
			"total", humanize.Bytes(uint64(max(total, 0))),
		)
	}
}

// dictionary returns the installed dictionary named by the first argument.
func dictionary(c *cli.Context) (*cdsl.Dictionary, error) {
	if c.NArg() < 1 {
		return nil, fmt.Errorf("%w: missing dictionary id", ErrFlagParse)
	}
	corpus, err := openCorpus(c)
	if err != nil {
		return nil, err
	}
	d, err := corpus.Dictionary(c.Args().First())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCdsl, err)
	}
	return d, nil
}

func printVersion(c *cli.Context) error {
	info := version.GetVersionInfo()
	_, err := fmt.Fprintln(c.App.Writer, info.String())
	//nolint:wrapcheck // error should not be wrapped
	return err
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print version information",
	Action: func(c *cli.Context) error {
		return printVersion(c)
	},
}
