package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/invalidation"
	mylog "github.com/mohammed-shakir/snowflake-featureserver/internal/logger"
)

// GenerationBumper retires every cached result of a table.
type GenerationBumper interface {
	Bump(ctx context.Context, table string) (uint64, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  GenerationBumper
	tables map[string]struct{}
	dedupe *versionDedupe
	zlog   *zerolog.Logger
}

// New builds a consumer that bumps generations in store. When tables is not
// empty, events for any other table are ignored.
func New(cfg Config, logger *slog.Logger, store GenerationBumper, tables []string) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	known := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		known[normalize(t)] = struct{}{}
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		tables: known,
		dedupe: newVersionDedupe(cfg.DedupeSize),
	}
}

// SetEventLogger routes per-event audit lines to zl.
func (c *Consumer) SetEventLogger(zl *zerolog.Logger) { c.zlog = zl }

// Start consumes invalidation events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing cache store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.logger.Error("consumer error", "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single event. Malformed, unknown-table and stale
// events are skipped without error so their offsets get committed; a failed
// bump is returned so the message is retried.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	zl := mylog.FromContext(ctx, c.zlog)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.skip(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.skip(ctx, msg, "invalid", err)
		return nil
	}

	table := normalize(ev.Table)
	if len(c.tables) > 0 {
		if _, ok := c.tables[table]; !ok {
			obs.ObserveInvalidation(ev.Op, "ignored")
			c.logger.DebugContext(ctx, "event for unserved table", "table", table)
			return nil
		}
	}

	// #nosec G115 -- ts is validated non-zero; pre-1970 values only sort as stale.
	version := uint64(ev.TS.UnixNano())
	if c.dedupe.stale(table, version) {
		obs.ObserveInvalidation(ev.Op, "duplicate")
		c.logger.DebugContext(ctx, "stale invalidation dropped", "table", table, "ts", ev.TS)
		return nil
	}

	gen, err := c.store.Bump(ctx, table)
	if err != nil {
		obs.IncKafkaConsumerError("bump")
		obs.ObserveInvalidation(ev.Op, "error")
		zl.Error().
			Str("kind", "bump").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Str("table", table).
			Msg("kafka error")
		return fmt.Errorf("bump generation %s: %w", table, err)
	}
	c.dedupe.mark(table, version)

	obs.ObserveInvalidation(ev.Op, "applied")
	zl.Info().
		Str("event", "invalidation").
		Str("op", ev.Op).
		Str("table", table).
		Uint64("generation", gen).
		Msg("table generation bumped")
	return nil
}

func (c *Consumer) skip(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncKafkaConsumerError(kind)
	obs.ObserveInvalidation("unknown", "rejected")
	c.logger.WarnContext(ctx, "invalidation event skipped",
		"kind", kind,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"err", err)
}

func normalize(table string) string {
	return strings.ToUpper(strings.TrimSpace(table))
}
