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
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
)

var availableCommand = &cli.Command{
	Name:         "available",
	Usage:        "list the dictionaries available for download",
	OnUsageError: usageError,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:               "cached",
			Usage:              "list the cached registry without contacting the server",
			DisableDefaultText: true,
		},
	},
	Action: func(c *cli.Context) error {
		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}
		if !c.Bool("cached") {
			if err := corpus.Refresh(c.Context); err != nil {
				return fmt.Errorf("%w: %w", ErrCdsl, err)
			}
		}

		tbl := table.New("ID", "Name", "Date", "State").WithWriter(c.App.Writer)
		for _, m := range corpus.Available() {
			tbl.AddRow(m.ID, m.Name, m.Date, corpus.State(m.ID))
		}
		tbl.Print()
		return nil
	},
}

var dictsCommand = &cli.Command{
	Name:         "dicts",
	Usage:        "list the installed dictionaries",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}

		tbl := table.New("ID", "Name", "Archive", "Installed").WithWriter(c.App.Writer)
		for d := range corpus.Dictionaries() {
			m := d.Metadata()
			tbl.AddRow(m.ID, m.Name, humanize.Bytes(uint64(max(m.Size, 0))), humanize.Time(m.Installed))
		}
		tbl.Print()
		return nil
	},
}

var setupCommand = &cli.Command{
	Name:         "setup",
	Usage:        "install dictionaries",
	ArgsUsage:    "[ID...]",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}
		if err := corpus.Setup(c.Context, c.Args().Slice(), false); err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		_, err = fmt.Fprintf(c.App.Writer, "installed: %v\n", corpus.Installed())
		//nolint:wrapcheck // error should not be wrapped
		return err
	},
}

var updateCommand = &cli.Command{
	Name:         "update",
	Usage:        "update installed dictionaries",
	ArgsUsage:    "[ID...]",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}
		ids := c.Args().Slice()
		if len(ids) == 0 {
			ids = corpus.Installed()
		}
		if len(ids) == 0 {
			_, err := fmt.Fprintln(c.App.Writer, "no dictionaries installed")
			//nolint:wrapcheck // error should not be wrapped
			return err
		}
		if err := corpus.Setup(c.Context, ids, true); err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		return nil
	},
}

var rebuildCommand = &cli.Command{
	Name:         "rebuild",
	Usage:        "rebuild a dictionary from its downloaded source",
	ArgsUsage:    "ID",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		corpus, err := openCorpus(c)
		if err != nil {
			return err
		}
		if err := corpus.Rebuild(c.Context, d.ID()); err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		return nil
	},
}

var infoCommand = &cli.Command{
	Name:         "info",
	Usage:        "print information about an installed dictionary",
	ArgsUsage:    "ID",
	OnUsageError: usageError,
	Action: func(c *cli.Context) error {
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		m := d.Metadata()
		s := d.Settings()

		tbl := table.New("Field", "Value").WithWriter(c.App.Writer)
		tbl.AddRow("ID", m.ID)
		tbl.AddRow("Name", m.Name)
		tbl.AddRow("Date", m.Date)
		tbl.AddRow("Download page", m.URL)
		tbl.AddRow("Archive", m.ArchiveURL)
		tbl.AddRow("Archive size", humanize.Bytes(uint64(max(m.Size, 0))))
		tbl.AddRow("Release", m.BuildMarker)
		tbl.AddRow("Installed", m.Installed.Format("2006-01-02 15:04:05"))
		tbl.AddRow("Transliterate keys", strconv.FormatBool(s.TransliterateKeys))
		tbl.AddRow("Input scheme", s.InputScheme)
		tbl.AddRow("Output scheme", s.OutputScheme)
		tbl.AddRow("Mode", s.Mode)
		tbl.Print()
		return nil
	},
}

var exportCommand = &cli.Command{
	Name:         "export",
	Usage:        "write a dictionary in the StarDict format",
	ArgsUsage:    "ID DIR",
	OnUsageError: usageError,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:               "verify",
			Usage:              "read back the exported files and print their word counts",
			DisableDefaultText: true,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("%w: expected a dictionary and a directory", ErrFlagParse)
		}
		d, err := dictionary(c)
		if err != nil {
			return err
		}
		dir := c.Args().Get(1)
		if err := d.Export(c.Context, dir, ""); err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		if !c.Bool("verify") {
			return nil
		}

		sum, err := d.VerifyExport(dir)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCdsl, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d words, %d synonyms\n", sum.BookName, sum.WordCount, sum.SynWordCount)
		return nil
	},
}
