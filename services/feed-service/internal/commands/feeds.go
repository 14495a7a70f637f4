package commands

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/feed"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/fixture"
	"github.com/spf13/cobra"
)

func newInitCommand(opts *options) *cobra.Command {
	var (
		seed bool
		day  string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the fixture schema, optionally with sample data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := fixture.Open(opts.dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if !seed {
				return nil
			}
			start := time.Now().UTC()
			if day != "" {
				if start, err = time.Parse("2006-01-02", day); err != nil {
					return err
				}
			}
			if err := fixture.Seed(cmd.Context(), store, start); err != nil {
				return err
			}
			cmd.Printf("fixture %s seeded for %s\n", opts.dbPath, start.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "insert sample unit types, units and events")
	cmd.Flags().StringVar(&day, "day", "", "day the sample events start on (default today)")
	return cmd
}

func newUnitsCommand(opts *options) *cobra.Command {
	var eventType, types, ids string
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Print the units index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, b *feed.Builder, access feed.Access) (any, []error, error) {
				groups, err := b.Units(ctx, feed.UnitsRequest{
					EventType: eventType,
					UnitTypes: feed.ParseSelection(types),
					IDs:       feed.SplitList(ids),
				}, access)
				return groups, nil, err
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "event-type", "", "event type the units are listed for")
	cmd.Flags().StringVar(&types, "types", "all", "unit types (all or comma separated)")
	cmd.Flags().StringVar(&ids, "ids", "", "only these unit ids")
	return cmd
}

func newEventsCommand(opts *options) *cobra.Command {
	var (
		unitTypes, eventTypes, unitIDs, start, end string
		background                                 bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the calendar events feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, b *feed.Builder, access feed.Access) (any, []error, error) {
				res, err := b.Events(ctx, feed.EventsRequest{
					UnitTypes:  feed.ParseSelection(unitTypes),
					EventTypes: feed.ParseSelection(eventTypes),
					UnitIDs:    feed.SplitList(unitIDs),
					Background: background,
					Start:      start,
					End:        end,
				}, access)
				return res.Items, res.Errors, err
			})
		},
	}
	cmd.Flags().StringVar(&unitTypes, "unit-types", "all", "unit types (all or comma separated)")
	cmd.Flags().StringVar(&eventTypes, "event-types", "all", "event types (all or comma separated)")
	cmd.Flags().StringVar(&unitIDs, "unit-ids", "", "only these unit ids")
	cmd.Flags().BoolVar(&background, "background", false, "render non-blocking events as background")
	cmd.Flags().StringVar(&start, "start", "", "window start")
	cmd.Flags().StringVar(&end, "end", "", "window end")
	return cmd
}

func newMatchingCommand(opts *options) *cobra.Command {
	var unitTypes, eventType, states, start, end string
	cmd := &cobra.Command{
		Use:   "matching",
		Short: "Print the matching-units availability feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, b *feed.Builder, access feed.Access) (any, []error, error) {
				res, err := b.MatchingUnits(ctx, feed.MatchingUnitsRequest{
					UnitTypes:   feed.ParseSelection(unitTypes),
					EventType:   eventType,
					EventStates: feed.SplitList(states),
					Start:       start,
					End:         end,
				}, access)
				return res.Items, res.Errors, err
			})
		},
	}
	cmd.Flags().StringVar(&unitTypes, "unit-types", "all", "unit types (all or comma separated)")
	cmd.Flags().StringVar(&eventType, "event-type", "", "event type to classify")
	cmd.Flags().StringVar(&states, "states", "", "accepted states (ids or machine names, comma separated)")
	cmd.Flags().StringVar(&start, "start", "", "window start")
	cmd.Flags().StringVar(&end, "end", "", "window end")
	return cmd
}
