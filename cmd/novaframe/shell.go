package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"

	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/frame"
	"github.com/tuannm99/novaframe/internal/record"
	"github.com/tuannm99/novaframe/internal/schemafile"
)

const shellHelp = `commands:
  \alloc <codes> <names> <rows>  allocate, e.g. \alloc i4,M8[ms] id,at 10
  \load <schema.yaml>            allocate from a schema file
  \tz <column> <zone>            zone for the next \alloc
  \show [n]                      print the first n rows (default 10)
  \write <file.parquet>          write the current table
  \q | quit | exit               quit`

// shell holds the table currently allocated by the interactive session.
type shell struct {
	fs    afero.Fs
	alloc *alloc.Allocator
	out   io.Writer
	zones map[string]string
	tbl   *frame.Table
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novaframe_history"
	}
	return filepath.Join(home, ".novaframe_history")
}

func runShell(fs afero.Fs, a *alloc.Allocator, histPath string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "novaframe> ",
		HistoryFile:     histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := &shell{fs: fs, alloc: a, out: rl.Stdout(), zones: map[string]string{}}
	defer sh.release()

	fmt.Fprintln(sh.out, `type \help for help`)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// EOF
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == `\q` || line == "quit" || line == "exit" {
			return nil
		}
		if err := sh.exec(line); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func (sh *shell) release() {
	if sh.tbl != nil {
		sh.tbl.Release()
		sh.tbl = nil
	}
}

func (sh *shell) exec(line string) error {
	args := strings.Fields(line)
	switch args[0] {
	case `\help`:
		fmt.Fprintln(sh.out, shellHelp)
		return nil
	case `\alloc`:
		if len(args) != 4 {
			return errors.New(`usage: \alloc <codes> <names> <rows>`)
		}
		rows, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("rows: %w", err)
		}
		return sh.allocate(alloc.Request{
			Types:     record.Codes(args[1]),
			Rows:      rows,
			Columns:   strings.Split(args[2], ","),
			Timezones: sh.zones,
		})
	case `\load`:
		if len(args) != 2 {
			return errors.New(`usage: \load <schema.yaml>`)
		}
		req, err := schemafile.Load(sh.fs, args[1])
		if err != nil {
			return err
		}
		return sh.allocate(req)
	case `\tz`:
		if len(args) != 3 {
			return errors.New(`usage: \tz <column> <zone>`)
		}
		sh.zones[args[1]] = args[2]
		return nil
	case `\show`:
		n := 10
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rows: %w", err)
			}
			if v < 0 {
				return fmt.Errorf("rows: %d is negative", v)
			}
			n = v
		}
		return sh.show(n)
	case `\write`:
		if len(args) != 2 {
			return errors.New(`usage: \write <file.parquet>`)
		}
		if sh.tbl == nil {
			return errors.New("no table allocated")
		}
		return writeParquet(sh.fs, args[1], sh.tbl)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (sh *shell) allocate(req alloc.Request) error {
	tbl, _, err := sh.alloc.Allocate(req)
	if err != nil {
		return err
	}
	sh.release()
	sh.tbl = tbl
	sh.zones = map[string]string{}
	printSummary(sh.out, tbl)
	return nil
}

func (sh *shell) show(n int) error {
	if sh.tbl == nil {
		return errors.New("no table allocated")
	}
	n = min(n, sh.tbl.NumRows())

	rows := make([][]string, n)
	for i := range rows {
		vals := sh.tbl.Row(i)
		row := make([]string, len(vals))
		for j, v := range vals {
			if v == nil {
				row[j] = "NULL"
			} else {
				row[j] = fmt.Sprintf("%v", v)
			}
		}
		rows[i] = row
	}
	printRows(sh.out, sh.tbl.Names(), rows)
	return nil
}
