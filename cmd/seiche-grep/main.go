// Command seiche-grep matches an extended expression against files,
// line by line, using the rx engine. Expressions combine sub-patterns
// with '&', '|' and '-':
//
//	seiche-grep 'error&timeout-retry' server.log
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/seiche-search/seiche/rx"
)

type config struct {
	shortest bool
	walk     bool
}

func main() {
	fs := flag.NewFlagSet("seiche-grep", flag.ExitOnError)
	conf := config{}
	fs.BoolVar(&conf.shortest, "shortest", false, "shortest instead of longest matches")
	fs.BoolVar(&conf.walk, "walk", false, "print every sub-pattern occurrence")

	root := &ffcli.Command{
		Name:       "seiche-grep",
		ShortUsage: "seiche-grep [flags] <expression> [file]...",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("no expression")
			}
			return run(&conf, args[0], args[1:])
		},
	}
	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "seiche-grep:", err)
		os.Exit(1)
	}
}

func run(conf *config, expr string, paths []string) error {
	pat, err := rx.Compile(expr)
	if err != nil {
		return err
	}
	mode := rx.Longest
	if conf.shortest {
		mode = rx.Shortest
	}

	grep := func(name string, f *os.File) error {
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 1024*1024), 1024*1024)
		lineno := 0
		for sc.Scan() {
			lineno++
			line := sc.Text()
			if conf.walk {
				ms, err := pat.Walk(mode, line)
				if err != nil {
					return err
				}
				for _, m := range ms {
					fmt.Printf("%s:%d:%d-%d\t#%d\n", name, lineno, m.Start, m.End, m.SubPatternID)
				}
				continue
			}
			m, err := pat.Step(mode, line)
			if err != nil {
				return err
			}
			if m != nil {
				fmt.Printf("%s:%d:%s\n", name, lineno, line)
			}
		}
		return sc.Err()
	}

	if len(paths) == 0 {
		return grep("stdin", os.Stdin)
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		if err := grep(p, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	return nil
}
