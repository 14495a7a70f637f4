// Package commands implements feedctl, which builds calendar feeds from a
// SQLite fixture or a running calendar service.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/feed"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/fixture"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/policy"
	"github.com/spf13/cobra"
)

type options struct {
	dbPath      string
	oracleAddr  string
	timezone    string
	permissions []string
	now         string
	debug       bool
}

// NewRootCommand returns the feedctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "feedctl",
		Short: "Build calendar feeds from the command line",
		Long: `feedctl builds the calendar units, events and matching-units feeds and
prints them as JSON.

Examples:
  feedctl init --db cal.db                                   # create a fixture with sample data
  feedctl units --db cal.db --event-type availability
  feedctl events --db cal.db --start 2026-01-02 --end 2026-01-03
  feedctl matching --oracle localhost:9095 --event-type availability --states available \
      --start 2026-01-02 --end "2026-01-02 23:59"
  feedctl token --secret dev --permissions "*"                # bearer token for the feed service`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "batfeed.db", "SQLite fixture path")
	root.PersistentFlags().StringVar(&opts.oracleAddr, "oracle", "", "calendar service gRPC address (overrides --db)")
	root.PersistentFlags().StringVar(&opts.timezone, "timezone", "UTC", "zone for dates without an offset")
	root.PersistentFlags().StringSliceVar(&opts.permissions, "permissions", []string{policy.Everything}, "permissions granted to the caller")
	root.PersistentFlags().StringVar(&opts.now, "now", "", "pretend the current time is this instant (RFC 3339)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newInitCommand(opts),
		newUnitsCommand(opts),
		newEventsCommand(opts),
		newMatchingCommand(opts),
		newPublishCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// Execute runs feedctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openOracle returns the oracle the feeds are built from and a release func.
func (o *options) openOracle(ctx context.Context) (oracle.Oracle, func(), error) {
	if o.oracleAddr != "" {
		client, err := oracle.Dial(ctx, o.oracleAddr, 5*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("dial oracle: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	}
	store, err := fixture.Open(o.dbPath)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	mem, err := store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return mem, func() {}, nil
}

func (o *options) builder(cmd *cobra.Command, src oracle.Oracle) (*feed.Builder, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone: %w", err)
	}
	cfg := feed.Config{Location: loc}
	if o.now != "" {
		now, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		cfg.Now = func() time.Time { return now }
	}
	return feed.NewBuilder(src, o.logger(cmd), cfg), nil
}

func (o *options) access() policy.Permissions {
	return policy.NewPermissions(o.permissions...)
}

// run opens the oracle, builds a feed with fn and prints it.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, b *feed.Builder, access feed.Access) (any, []error, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	src, release, err := o.openOracle(ctx)
	if err != nil {
		return err
	}
	defer release()
	b, err := o.builder(cmd, src)
	if err != nil {
		return err
	}
	items, failures, err := fn(ctx, b, o.access())
	if err != nil {
		return err
	}
	for _, f := range failures {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", f)
	}
	return writeJSON(cmd.OutOrStdout(), items)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
