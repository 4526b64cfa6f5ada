package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/hangoutstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

type CLI struct {
	Config       string `name:"config" short:"c" type:"existingfile" help:"Path to a YAML config file"`
	LogLevel     string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)"`
	PrintMetrics bool   `name:"print-metrics" help:"Write store metrics to stdout after the command"`

	CreateTable  CreateTableCmd  `cmd:"" name:"create-table" help:"Create the hangout table and enable cursor expiry"`
	Resync       ResyncCmd       `cmd:"" help:"Rewrite the group pointers of a hangout from its canonical record"`
	DeleteGroup  DeleteGroupCmd  `cmd:"" name:"delete-group" help:"Delete a group and every item of its partition"`
	DeleteSeries DeleteSeriesCmd `cmd:"" name:"delete-series" help:"Delete an event series"`
	Feed         FeedCmd         `cmd:"" help:"Print the feed validator and size of a group"`
}

type CreateTableCmd struct{}

type ResyncCmd struct {
	Hangout     string   `name:"hangout" required:"" help:"Hangout id"`
	StaleGroups []string `name:"stale-group" sep:"," help:"Groups whose pointer should be removed (repeatable or comma-separated)"`
}

type DeleteGroupCmd struct {
	Group string `name:"group" required:"" help:"Group id"`
}

type DeleteSeriesCmd struct {
	Series       string `name:"series" required:"" help:"Series id"`
	WithHangouts bool   `name:"with-hangouts" help:"Also delete every hangout of the series"`
}

type FeedCmd struct {
	Group       string `name:"group" required:"" help:"Group id"`
	IfNoneMatch string `name:"if-none-match" help:"Validator from a previous response"`
}

type kongExitCode int

// adminClient is the DynamoDB surface the commands need.
type adminClient interface {
	hangoutstore.DynamoDBClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

type commandDeps struct {
	loadConfig func(path string) (hangoutstore.Config, error)
	newClient  func(ctx context.Context, cfg hangoutstore.Config) (adminClient, error)
	newLogger  func(level string) (*zap.Logger, error)
	out        io.Writer
	errOut     io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], defaultDeps()))
}

func defaultDeps() commandDeps {
	return commandDeps{
		loadConfig: hangoutstore.LoadConfig,
		newClient: func(ctx context.Context, cfg hangoutstore.Config) (adminClient, error) {
			return hangoutstore.NewClient(ctx, cfg)
		},
		newLogger: hangoutstore.NewLogger,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

func run(args []string, deps commandDeps) (exitCode int) {
	out := deps.out
	if out == nil {
		out = os.Stdout
	}
	errOut := deps.errOut
	if errOut == nil {
		errOut = os.Stderr
	}
	cli := CLI{}
	parser, err := kong.New(
		&cli,
		kong.Name("hangoutctl"),
		kong.Description("Administer the hangout table."),
		kong.Writers(out, errOut),
		kong.Exit(func(code int) {
			panic(kongExitCode(code))
		}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: initialize command parser: %v\n", err)
		return 1
	}
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		code, ok := recovered.(kongExitCode)
		if !ok {
			panic(recovered)
		}
		exitCode = int(code)
	}()
	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		_, _ = fmt.Fprintln(errOut, "Hint: run `hangoutctl --help`.")
		return 1
	}

	ctx := context.Background()
	env, err := open(ctx, cli, deps)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = env.logger.Sync() }()

	switch kctx.Command() {
	case "create-table":
		err = runCreateTable(ctx, env, out)
	case "resync":
		err = runResync(ctx, cli.Resync, env, out)
	case "delete-group":
		err = runDeleteGroup(ctx, cli.DeleteGroup, env, out)
	case "delete-series":
		err = runDeleteSeries(ctx, cli.DeleteSeries, env, out)
	case "feed":
		err = runFeed(ctx, cli.Feed, env, out)
	default:
		err = fmt.Errorf("unsupported command: %s", kctx.Command())
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		if hint := hintForError(err); hint != "" {
			_, _ = fmt.Fprintf(errOut, "Hint: %s\n", hint)
		}
		return 1
	}

	if cli.PrintMetrics {
		if err := writeMetrics(env.registry, out); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// environment is everything a command runs against.
type environment struct {
	client   adminClient
	store    *hangoutstore.Store
	logger   *zap.Logger
	registry *prometheus.Registry
}

func open(ctx context.Context, cli CLI, deps commandDeps) (*environment, error) {
	loadConfig := deps.loadConfig
	if loadConfig == nil {
		loadConfig = hangoutstore.LoadConfig
	}
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	newLogger := deps.newLogger
	if newLogger == nil {
		newLogger = hangoutstore.NewLogger
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	client, err := deps.newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	table := cfg.NewTable(logger, func(t *hangoutstore.Table) {
		t.Metrics = hangoutstore.NewMetrics("hangoutctl", registry)
	})

	var storeClient hangoutstore.DynamoDBClient = client
	if cfg.Breaker {
		storeClient = hangoutstore.NewBreakerClient(client, hangoutstore.DefaultBreakerConfig(cfg.TableName), logger)
	}

	return &environment{
		client:   client,
		store:    hangoutstore.NewStore(storeClient, table),
		logger:   logger,
		registry: registry,
	}, nil
}

func runCreateTable(ctx context.Context, env *environment, out io.Writer) error {
	table := env.store.Table()
	if _, err := env.client.CreateTable(ctx, table.CreateTableInput()); err != nil {
		return fmt.Errorf("create table %s: %w", table.TableName, err)
	}
	if _, err := env.client.UpdateTimeToLive(ctx, table.TimeToLiveInput()); err != nil {
		return fmt.Errorf("enable ttl on %s: %w", table.TableName, err)
	}
	_, _ = fmt.Fprintf(out, "created table %s\n", table.TableName)
	return nil
}

func runResync(ctx context.Context, cmd ResyncCmd, env *environment, out io.Writer) error {
	if err := env.store.ResyncHangoutPointers(ctx, cmd.Hangout, cmd.StaleGroups...); err != nil {
		return fmt.Errorf("resync hangout %s: %w", cmd.Hangout, err)
	}
	_, _ = fmt.Fprintf(out, "resynced pointers of hangout %s\n", cmd.Hangout)
	return nil
}

func runDeleteGroup(ctx context.Context, cmd DeleteGroupCmd, env *environment, out io.Writer) error {
	n, err := env.store.DeleteGroup(ctx, cmd.Group)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", cmd.Group, err)
	}
	_, _ = fmt.Fprintf(out, "deleted %d items of group %s\n", n, cmd.Group)
	return nil
}

func runDeleteSeries(ctx context.Context, cmd DeleteSeriesCmd, env *environment, out io.Writer) error {
	series, err := env.store.FindEventSeries(ctx, cmd.Series)
	if err != nil {
		return fmt.Errorf("load series %s: %w", cmd.Series, err)
	}

	parts := make([]*hangoutstore.Hangout, 0, len(series.HangoutIDs))
	for _, id := range series.HangoutIDs {
		h, err := env.store.FindHangout(ctx, id)
		if err != nil {
			return fmt.Errorf("load part %s of series %s: %w", id, cmd.Series, err)
		}
		parts = append(parts, h)
	}

	if cmd.WithHangouts {
		err = env.store.DeleteEntireSeriesWithAllHangouts(ctx, series, parts)
	} else {
		err = env.store.DeleteEntireSeries(ctx, series, parts)
	}
	if err != nil {
		return fmt.Errorf("delete series %s: %w", cmd.Series, err)
	}
	_, _ = fmt.Fprintf(out, "deleted series %s (%d parts, hangouts deleted: %t)\n", cmd.Series, len(parts), cmd.WithHangouts)
	return nil
}

func runFeed(ctx context.Context, cmd FeedCmd, env *environment, out io.Writer) error {
	feed, err := hangoutstore.NewFeedService(env.store).GetGroupFeed(ctx, cmd.Group, cmd.IfNoneMatch)
	if err != nil {
		return fmt.Errorf("read feed of group %s: %w", cmd.Group, err)
	}
	if feed.NotModified {
		_, _ = fmt.Fprintf(out, "%s not modified\n", feed.ETag)
		return nil
	}
	_, _ = fmt.Fprintf(out, "%s hangouts=%d series=%d\n", feed.ETag, len(feed.Hangouts), len(feed.Series))
	return nil
}

func writeMetrics(registry *prometheus.Registry, out io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func hintForError(err error) string {
	var inUse *types.ResourceInUseException
	var txErr *hangoutstore.TransactionFailedError
	switch {
	case errors.As(err, &inUse):
		return "the table already exists; nothing to do."
	case hangoutstore.IsNotFound(err):
		return "check the id and the configured table name."
	case errors.As(err, &txErr):
		return "the record changed while the command ran; run it again."
	case errors.Is(err, hangoutstore.ErrInvalidInput):
		return "run the command with --help for the expected arguments."
	}
	return ""
}
