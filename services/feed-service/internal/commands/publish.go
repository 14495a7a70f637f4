package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/batfeed/libs/kafkax"
	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

func newPublishCommand(_ *options) *cobra.Command {
	var (
		brokers, id, unit, eventType, start, end string
		value                                    int64
		del                                      bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Send a calendar event change to the calendar service over Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := kafkax.SplitBrokers(brokers)
			if len(list) == 0 {
				return errors.New("--brokers is required")
			}

			var (
				msg kafka.Message
				err error
			)
			if del {
				if id == "" {
					return errors.New("--id is required with --delete")
				}
				msg, err = oracle.NewMessage(cmd.Context(), oracle.TopicEventDeleted, id, oracle.EventDeleted{EventID: id})
			} else {
				payload := oracle.EventUpserted{EventID: id, UnitID: unit, EventType: eventType, Value: value}
				if payload.EventID == "" {
					payload.EventID = uuid.NewString()
				}
				if payload.Start, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				if payload.End, err = time.Parse(time.RFC3339, end); err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				if err := payload.Validate(); err != nil {
					return err
				}
				id = payload.EventID
				msg, err = oracle.NewMessage(cmd.Context(), oracle.TopicEventUpserted, id, payload)
			}
			if err != nil {
				return err
			}

			writer := &kafka.Writer{
				Addr:                   kafka.TCP(list...),
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
			}
			defer writer.Close()
			if err := writer.WriteMessages(cmd.Context(), msg); err != nil {
				return fmt.Errorf("publish %s: %w", msg.Topic, err)
			}
			cmd.Printf("published %s for event %s\n", msg.Topic, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "localhost:9092", "comma separated Kafka brokers")
	cmd.Flags().StringVar(&id, "id", "", "event id (generated for new events when empty)")
	cmd.Flags().StringVar(&unit, "unit", "", "unit id")
	cmd.Flags().StringVar(&eventType, "event-type", "", "event type")
	cmd.Flags().StringVar(&start, "start", "", "event start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "event end, exclusive (RFC 3339)")
	cmd.Flags().Int64Var(&value, "value", 0, "state id or open-state value")
	cmd.Flags().BoolVar(&del, "delete", false, "delete the event instead")
	return cmd
}
