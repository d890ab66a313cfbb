package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mudge/oplog/internal/logger"
	"github.com/mudge/oplog/pkg/oplog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/log/zap"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

var defaultLogLevel = "info"

type flags struct {
	hosts               []string
	port                int
	user                string
	password            string
	authSource          string
	replicaSet          string
	direct              bool
	secondaryPreferred  bool
	ops                 []string
	collections         []string
	excludedCollections []string
	start               string
	logLevel            string
}

func main() {
	var f flags

	rootCommand := &cobra.Command{
		Use:          "oplogtail",
		Short:        "Tail a MongoDB replica set oplog and print every operation",
		Example:      "./oplogtail --host mongo-1 --op i --op u --start -15",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loggerConfig := logger.DefaultLoggerConfig(zapcore.InfoLevel)
			loggerConfig.OutputPaths = []string{"stderr"}
			loggerConfig.ErrorOutputPaths = []string{"stderr"}
			var lvl zapcore.Level
			if err := lvl.UnmarshalText([]byte(f.logLevel)); err != nil {
				return xerrors.Errorf("unsupported value %q for --log-level", f.logLevel)
			}
			loggerConfig.Level.SetLevel(lvl)
			logger.Log = zap.Must(loggerConfig)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	rootCommand.PersistentFlags().StringArrayVar(&f.hosts, "host", nil, "Host to connect to, may be repeated (default localhost)")
	rootCommand.PersistentFlags().IntVar(&f.port, "port", 27017, "Port for hosts given without one")
	rootCommand.PersistentFlags().StringVar(&f.user, "user", "", "User name")
	rootCommand.PersistentFlags().StringVar(&f.password, "password", "", "User password")
	rootCommand.PersistentFlags().StringVar(&f.authSource, "auth-source", "", "Database to authenticate against (default admin)")
	rootCommand.PersistentFlags().StringVar(&f.replicaSet, "replica-set", "", "Replica set name")
	rootCommand.PersistentFlags().BoolVar(&f.direct, "direct", false, "Connect directly to the given host instead of discovering the topology")
	rootCommand.PersistentFlags().BoolVar(&f.secondaryPreferred, "secondary-preferred", false, "Prefer reading the oplog of a secondary")
	rootCommand.PersistentFlags().StringArrayVar(&f.ops, "op", nil, "Only print operations with this discriminator (\"n\", \"i\", \"u\", \"d\", \"c\"), may be repeated")
	rootCommand.PersistentFlags().StringArrayVar(&f.collections, "collection", nil, "Only print operations on db.collection (\"*\" wildcards allowed), may be repeated")
	rootCommand.PersistentFlags().StringArrayVar(&f.excludedCollections, "exclude-collection", nil, "Skip operations on db.collection (\"*\" wildcards allowed), may be repeated")
	rootCommand.PersistentFlags().StringVar(&f.start, "start", "all", "Where to start: \"all\", \"now\", \"-N\" (N minutes ago) or a unix timestamp")
	rootCommand.PersistentFlags().StringVar(&f.logLevel, "log-level", defaultLogLevel, "Logging level (\"error\", \"warn\", \"info\", \"debug\")")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	client, err := oplog.Connect(ctx, oplog.ConnectionOptions{
		Hosts:              f.hosts,
		Port:               f.port,
		ReplicaSet:         f.replicaSet,
		AuthSource:         f.authSource,
		User:               f.user,
		Password:           f.password,
		Direct:             f.direct,
		SecondaryPreferred: f.secondaryPreferred,
	}, logger.Log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	resume, err := startTimestamp(ctx, client, f.start)
	if err != nil {
		return err
	}

	filter := buildFilter(f)

	// The iterator never reconnects by itself; rebuild it from the last seen
	// position whenever the connection drops.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 0
	bo := backoff.WithContext(expBackoff, ctx)
	return backoff.Retry(func() error {
		last, err := tail(ctx, client, filter, resume, bo)
		if last != nil {
			resume = last
		}
		if err == nil || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if xerrors.Is(err, oplog.ErrOplogNotFound) {
			return backoff.Permanent(err)
		}
		logger.Log.Warn("tailing session failed, rebuilding", log.Error(err))
		return err
	}, bo)
}

func tail(ctx context.Context, client *mongo.Client, filter bson.D, resume *primitive.Timestamp, bo backoff.BackOff) (*primitive.Timestamp, error) {
	builder := oplog.NewBuilder(client).WithLogger(logger.Log).WithFilter(filter)
	if resume != nil {
		builder = builder.ResumeAfter(*resume)
	}
	tailer, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tailer.Close(context.Background()) }()

	for {
		op, err := tailer.Next(ctx)
		if err != nil {
			if xerrors.Is(err, oplog.ErrDecode) {
				// already logged and skipped by the iterator
				continue
			}
			if last := tailer.LastTimestamp(); last.T != 0 || last.I != 0 {
				return &last, err
			}
			return nil, err
		}
		bo.Reset()
		fmt.Println(op)
	}
}

func buildFilter(f flags) bson.D {
	var filter bson.D
	if len(f.ops) > 0 {
		filter = append(filter, oplog.OpFilter(f.ops...)...)
	}
	collectionFilter := oplog.CollectionFilter{}
	for _, raw := range f.collections {
		if ns := oplog.ParseNamespace(raw); ns != nil {
			collectionFilter.Collections = append(collectionFilter.Collections, *ns)
		}
	}
	for _, raw := range f.excludedCollections {
		if ns := oplog.ParseNamespace(raw); ns != nil {
			collectionFilter.ExcludedCollections = append(collectionFilter.ExcludedCollections, *ns)
		}
	}
	return append(filter, collectionFilter.Where()...)
}

// startTimestamp resolves the --start specifier into a resume position, nil
// meaning the very beginning of the retained oplog.
func startTimestamp(ctx context.Context, client *mongo.Client, start string) (*primitive.Timestamp, error) {
	switch {
	case start == "" || strings.EqualFold(start, "all"):
		return nil, nil
	case strings.EqualFold(start, "now"):
		_, to, err := oplog.Interval(ctx, client)
		if err != nil {
			return nil, xerrors.Errorf("cannot read oplog interval: %w", err)
		}
		return &to, nil
	case strings.HasPrefix(start, "-"):
		minutes, err := strconv.Atoi(start[1:])
		if err != nil {
			return nil, xerrors.Errorf("unsupported value %q for --start", start)
		}
		ts := oplog.ToTimestamp(time.Now().Add(-time.Duration(minutes) * time.Minute))
		return &ts, nil
	default:
		seconds, err := strconv.ParseInt(start, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("unsupported value %q for --start", start)
		}
		ts := oplog.ToTimestamp(time.Unix(seconds, 0))
		return &ts, nil
	}
}
