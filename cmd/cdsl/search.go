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

	"github.com/dustin/go-humanize"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-cdsl"
	"github.com/ianlewis/go-cdsl/translit"
)

// ErrNoResults indicates that a search found nothing.
var ErrNoResults = fmt.Errorf("%w: no results", ErrCdsl)

var searchCommand = &cli.Command{
	Name:         "search",
	Usage:        "search dictionaries",
	ArgsUsage:    "PATTERN",
	OnUsageError: usageError,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "dict",
			Usage:   "search dictionary `ID`, installing it if needed",
			Aliases: []string{"D"},
		},
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "match `MODE` (key, value, both)",
			Aliases: []string{"m"},
		},
		&cli.IntFlag{
			Name:    "limit",
			Usage:   "return at most `N` results per dictionary",
			Aliases: []string{"n"},
			Value:   -1,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "skip the first `N` results of each dictionary",
		},
		&cli.BoolFlag{
			Name:               "ignore-case",
			Usage:              "match letters regardless of case",
			Aliases:            []string{"I"},
			DisableDefaultText: true,
		},
		&cli.BoolFlag{
			Name:               "all",
			Usage:              "include dictionaries without results",
			DisableDefaultText: true,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%w: expected one pattern", ErrFlagParse)
		}
		cfg := appConfig(c)
		log := appLogger(c)

		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}

		ids := c.StringSlice("dict")
		if len(ids) == 0 {
			ids = []string{cdsl.UseAll}
		}
		if err := corpus.Use(c.Context, ids...); err != nil {
			log.Warn("some dictionaries are unavailable", "error", err)
		}

		q := &cdsl.Query{
			Limit:      cfg.Search.Limit,
			Offset:     c.Int("offset"),
			OmitEmpty:  !c.Bool("all"),
			IgnoreCase: cfg.Search.IgnoreCase || c.Bool("ignore-case"),
		}
		if l := c.Int("limit"); l >= 0 {
			q.Limit = l
		}
		if m := c.String("mode"); m != "" {
			if q.Mode, err = cdsl.ParseMode(m); err != nil {
				return fmt.Errorf("%w: %w", ErrFlagParse, err)
			}
		}

		results, err := corpus.Search(c.Context, c.Args().First(), q)
		switch {
		case errors.Is(err, cdsl.ErrNoActiveDictionaries):
			return fmt.Errorf("%w: %w; run setup first", ErrCdsl, err)
		case err != nil:
			return fmt.Errorf("%w: %w", ErrFlagParse, err)
		}

		var found bool
		for _, r := range results {
			if r.Err != nil {
				log.Error("search failed", "dict", r.DictID, "error", r.Err)
				continue
			}
			fmt.Fprintf(c.App.Writer, "== %s (%d) ==\n", r.DictID, len(r.Entries))
			for _, e := range r.Entries {
				found = true
				fmt.Fprintln(c.App.Writer, e)
			}
			fmt.Fprintln(c.App.Writer)
		}
		if !found {
			return ErrNoResults
		}
		return nil
	},
}

var showCommand = &cli.Command{
	Name:         "show",
	Usage:        "print an entry",
	ArgsUsage:    "DICT ENTRY-ID",
	OnUsageError: usageError,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:               "raw",
			Usage:              "print the raw markup",
			DisableDefaultText: true,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("%w: expected a dictionary and an entry id", ErrFlagParse)
		}
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		e, err := d.Get(c.Context, c.Args().Get(1), "")
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}

		if c.Bool("raw") {
			fmt.Fprintln(c.App.Writer, e.Data)
			return nil
		}
		tbl := table.New("Field", "Value").WithWriter(c.App.Writer)
		tbl.AddRow("ID", e.ID)
		tbl.AddRow("Key", e.Key)
		if e.AltKey != "" && e.AltKey != e.Key {
			tbl.AddRow("Alternate key", e.AltKey)
		}
		if e.Page != "" {
			tbl.AddRow("Page", e.Page)
		}
		tbl.AddRow("Meaning", e.Meaning())
		tbl.Print()
		return nil
	},
}

var statsCommand = &cli.Command{
	Name:         "stats",
	Usage:        "print statistics about a dictionary",
	ArgsUsage:    "DICT",
	OnUsageError: usageError,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "top",
			Usage: "list the `N` most frequent headwords",
			Value: 10,
		},
	},
	Action: func(c *cli.Context) error {
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		stats, err := d.Stats(c.Context, c.Int("top"), "")
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}

		fmt.Fprintf(c.App.Writer, "Entries:   %s\n", humanize.Comma(int64(stats.Total)))
		fmt.Fprintf(c.App.Writer, "Headwords: %s\n\n", humanize.Comma(int64(stats.Distinct)))
		tbl := table.New("Headword", "Entries").WithWriter(c.App.Writer)
		for _, kc := range stats.Top {
			tbl.AddRow(kc.Key, kc.Count)
		}
		tbl.Print()
		return nil
	},
}

var dumpCommand = &cli.Command{
	Name:         "dump",
	Usage:        "write every entry of a dictionary as JSON",
	ArgsUsage:    "DICT",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		if err := d.Dump(c.Context, c.App.Writer, ""); err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		return nil
	},
}

var schemesCommand = &cli.Command{
	Name:         "schemes",
	Usage:        "list the transliteration schemes",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		tbl := table.New("Scheme", "Roman").WithWriter(c.App.Writer)
		for _, s := range translit.Schemes() {
			tbl.AddRow(s, translit.IsRoman(s))
		}
		tbl.Print()
		return nil
	},
}
