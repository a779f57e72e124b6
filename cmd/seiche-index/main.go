// Command seiche-index builds a shard from text documents: one document
// per file, or one per line with -lines.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/peterbourgon/ff/v3/ffcli"
	sglog "github.com/sourcegraph/log"

	"github.com/seiche-search/seiche"
)

type config struct {
	out       string
	indexing  string
	ngram     int
	normalize bool
	lines     bool
	signature string
}

func (c *config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.out, "o", "index.seiche", "output shard file")
	fs.StringVar(&c.indexing, "indexing", "dual", "indexing type: ngram, word or dual")
	fs.IntVar(&c.ngram, "ngram", 2, "n-gram length")
	fs.BoolVar(&c.normalize, "normalize", false, "lowercase documents before indexing")
	fs.BoolVar(&c.lines, "lines", false, "index each input line as one document")
	fs.StringVar(&c.signature, "signature", "large", "shard role: large, insert or delete")
}

func main() {
	liblog := sglog.Init(sglog.Resource{
		Name:    "seiche-index",
		Version: seiche.Version,
	})
	defer liblog.Sync()
	logger := sglog.Scoped("index", "shard building")

	fs := flag.NewFlagSet("seiche-index", flag.ExitOnError)
	conf := config{}
	conf.registerFlags(fs)

	root := &ffcli.Command{
		Name:       "seiche-index",
		ShortUsage: "seiche-index [flags] <file>...",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("no input files")
			}
			return run(logger, &conf, args)
		},
	}
	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		logger.Fatal("indexing failed", sglog.Error(err))
	}
}

func run(logger sglog.Logger, conf *config, args []string) error {
	opts := seiche.DefaultOpenOptions()
	switch conf.indexing {
	case "ngram":
		opts.IndexingType = seiche.IndexingNGram
	case "word":
		opts.IndexingType = seiche.IndexingWord
	case "dual":
		opts.IndexingType = seiche.IndexingDual
	default:
		return fmt.Errorf("unknown indexing type %q", conf.indexing)
	}
	opts.TokenizeParameter = conf.ngram
	opts.Normalized = conf.normalize

	var sig seiche.Signature
	switch conf.signature {
	case "large":
		sig = seiche.SignatureLarge
	case "insert":
		sig = seiche.SignatureInsert
	case "delete":
		sig = seiche.SignatureDelete
	default:
		return fmt.Errorf("unknown signature %q", conf.signature)
	}

	b := seiche.NewIndexBuilder(opts, sig)
	docID := uint32(1)
	add := func(text string) error {
		if err := b.Add(docID, docID, text); err != nil {
			return err
		}
		docID++
		return nil
	}

	for _, path := range args {
		if conf.lines {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 1024*1024), 1024*1024)
			for sc.Scan() {
				if err := add(sc.Text()); err != nil {
					f.Close()
					return err
				}
			}
			if err := sc.Err(); err != nil {
				f.Close()
				return err
			}
			f.Close()
		} else {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := add(string(data)); err != nil {
				return err
			}
		}
	}

	data, err := b.Build()
	if err != nil {
		return err
	}
	if err := os.WriteFile(conf.out, data, 0o644); err != nil {
		return err
	}
	logger.Info("shard written",
		sglog.String("path", filepath.Clean(conf.out)),
		sglog.Int("documents", b.NumDocs()),
		sglog.String("size", humanize.Bytes(uint64(len(data)))))
	return nil
}
