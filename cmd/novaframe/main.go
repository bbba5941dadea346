package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	_ "time/tzdata"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novaframe/internal"
	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/parquetio"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/schemafile"
)

var errUsage = errors.New("--schema or --interactive is required")

func main() {
	flags := pflag.NewFlagSet("novaframe", pflag.ExitOnError)
	err := run(flags, os.Args[1:])
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "novaframe: %v\n", err)
		flags.PrintDefaults()
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "novaframe: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred releases always happen.
func run(flags *pflag.FlagSet, args []string) error {
	var (
		cfgPath     = flags.String("config", "", "config file (yaml)")
		schemaPath  = flags.String("schema", "", "schema file (yaml) to allocate")
		outPath     = flags.StringP("out", "o", "", "write the allocated table as parquet")
		interactive = flags.BoolP("interactive", "i", false, "start an interactive shell")
		histPath    = flags.String("history", defaultHistoryPath(), "history file path for the shell")
	)
	flags.String("log.level", "info", "log level (debug, info, warn, error)")
	flags.String("timezone.strategy", "safe-fill", "datetime initialization: safe-fill or deferred")
	if err := flags.Parse(args); err != nil {
		return err
	}

	fs := afero.NewOsFs()
	cfg, err := internal.LoadConfig(fs, *cfgPath, flags)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ac, err := cfg.AllocConfig()
	if err != nil {
		return err
	}
	a, err := alloc.New(ac)
	if err != nil {
		return err
	}

	if *interactive {
		return runShell(fs, a, *histPath)
	}
	if *schemaPath == "" {
		return errUsage
	}

	req, err := schemafile.Load(fs, *schemaPath)
	if err != nil {
		return err
	}
	tbl, _, err := a.Allocate(req)
	if err != nil {
		return err
	}
	defer tbl.Release()

	printSummary(os.Stdout, tbl)

	if *outPath != "" {
		if err := writeParquet(fs, *outPath, tbl); err != nil {
			return err
		}
		slog.Info("wrote table", "path", *outPath, "rows", tbl.NumRows())
	}
	return nil
}

func writeParquet(fs afero.Fs, path string, tbl *frame.Table) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := parquetio.Write(f, tbl); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// storageBytes is the size of one column's storage block.
func storageBytes(c *frame.Column) uint64 {
	k := c.ViewType().Kind
	w := k.Width()
	if k == record.Object {
		w = int(unsafe.Sizeof(any(nil)))
	}
	return uint64(c.Len() * w)
}

// printSummary lists each column's logical type, view element type, zone and
// storage size.
func printSummary(w io.Writer, tbl *frame.Table) {
	header := []string{"column", "dtype", "view", "zone", "bytes"}
	var (
		rows  [][]string
		total uint64
	)
	for _, c := range tbl.Columns() {
		n := storageBytes(c)
		total += n
		rows = append(rows, []string{c.Name(), c.DType().String(), c.ViewType().String(), c.Zone(), humanize.Bytes(n)})
	}
	printRows(w, header, rows)

	index := "range"
	if !tbl.Index().IsRange() {
		index = strings.Join(tbl.Index().Names(), ",")
	}
	fmt.Fprintf(w, "(%s rows, index %s, %s)\n", humanize.Comma(int64(tbl.NumRows())), index, humanize.Bytes(total))
}

func printRows(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, s := range row {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	printRow := func(values []string) {
		for i := range header {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	printRow(header)
	for i := range header {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(row)
	}
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
