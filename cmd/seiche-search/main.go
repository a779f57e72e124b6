// Command seiche-search runs a query over one or more shards and prints
// the ranked result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	sglog "github.com/sourcegraph/log"

	"github.com/seiche-search/seiche"
	"github.com/seiche-search/seiche/query"
)

type config struct {
	shards     string
	limit      int
	sortKey    string
	calculator string
	cluster    bool
	clusterLim float64
	withTF     bool
}

func (c *config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.shards, "shards", "index.seiche", "comma separated shard files, large first")
	fs.IntVar(&c.limit, "limit", 10, "maximum number of results, 0 for all")
	fs.StringVar(&c.sortKey, "sort", "score-desc", "result order: score-desc, score-asc, rowid-asc, rowid-desc")
	fs.StringVar(&c.calculator, "calculator", "OkapiTfIdf:0.2:1:1", "score calculator descriptor")
	fs.BoolVar(&c.cluster, "cluster", false, "cluster the result")
	fs.Float64Var(&c.clusterLim, "clustered-limit", 0.8, "cluster similarity threshold")
	fs.BoolVar(&c.withTF, "tf", false, "print per-term frequencies")
}

func main() {
	liblog := sglog.Init(sglog.Resource{
		Name:    "seiche-search",
		Version: seiche.Version,
	})
	defer liblog.Sync()
	logger := sglog.Scoped("search", "query execution")

	fs := flag.NewFlagSet("seiche-search", flag.ExitOnError)
	conf := config{}
	conf.registerFlags(fs)

	root := &ffcli.Command{
		Name:       "seiche-search",
		ShortUsage: "seiche-search [flags] <query>",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("no query")
			}
			return run(ctx, logger, &conf, strings.Join(args, " "))
		},
	}
	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		logger.Fatal("search failed", sglog.Error(err))
	}
}

func run(ctx context.Context, logger sglog.Logger, conf *config, queryText string) error {
	q, err := query.Parse(queryText)
	if err != nil {
		return err
	}

	fileset, err := seiche.OpenFileSet(logger, strings.Split(conf.shards, ",")...)
	if err != nil {
		return err
	}
	defer fileset.Close()

	opts := &seiche.SearchOptions{
		Limit:          conf.limit,
		Calculator:     conf.calculator,
		Cluster:        conf.cluster,
		ClusteredLimit: conf.clusterLim,
	}
	switch conf.sortKey {
	case "score-desc":
		opts.Sort = seiche.SortScoreDesc
	case "score-asc":
		opts.Sort = seiche.SortScoreAsc
	case "rowid-asc":
		opts.Sort = seiche.SortRowIDAsc
	case "rowid-desc":
		opts.Sort = seiche.SortRowIDDesc
	default:
		return fmt.Errorf("unknown sort order %q", conf.sortKey)
	}
	if conf.withTF {
		opts.ResultType = seiche.ResultRowID | seiche.ResultScore | seiche.ResultTF
	}

	res, err := fileset.Search(ctx, q, opts)
	if err != nil {
		return err
	}

	for i, it := range res.Items {
		line := fmt.Sprintf("%d\t%.6f", it.RowID, it.Score)
		if res.ClusterIDs != nil {
			if id, ok := res.GetCluster(i); ok {
				line += fmt.Sprintf("\tcluster=%d", id)
			}
		}
		if it.TF != nil {
			line += fmt.Sprintf("\ttf=%v", it.TF)
		}
		fmt.Println(line)
	}
	logger.Info("search done",
		sglog.Int("matches", res.Stats.MatchCount),
		sglog.Int("shown", len(res.Items)))
	return nil
}
