// Command smoke checks a deployment end to end: the redis cache, the feature
// server query path, and the Kafka invalidation topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/cache/redisstore"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/httpclient"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/invalidation"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr, table string) error {
	fmt.Println("Redis test")
	rc, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(2*time.Second))
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = rc.Close() }()

	gen, err := rc.Generation(ctx, table)
	if err != nil {
		return fmt.Errorf("redis generation: %w", err)
	}
	fmt.Printf("redis generation for %s: %d\n", table, gen)
	return nil
}

func queryURL(baseURL, service string, layer int) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("bad server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/%s/FeatureServer/%d/query", u.Path, url.PathEscape(service), layer)
	u.RawQuery = url.Values{"returnCountOnly": {"true"}, "where": {"1=1"}}.Encode()
	return u.String(), nil
}

func testFeatureServer(ctx context.Context, client *http.Client, baseURL, service string) error {
	fmt.Println("Feature server test")
	target, err := queryURL(baseURL, service, 0)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http get query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Only read a small part of body (because it can be large)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query status %d: %s", resp.StatusCode, string(body))
	}
	fmt.Println("count response:")
	fmt.Println(string(body))
	return nil
}

func eventPayload(table, op string, ts time.Time) ([]byte, error) {
	ev := invalidation.Event{Version: 1, Op: op, Table: table, TS: ts.UTC(), Source: "smoke"}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

func publishInvalidation(brokers []string, topic, table string) error {
	fmt.Println("Kafka test")

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V3_6_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	payload, err := eventPayload(table, "update", time.Now())
	if err != nil {
		return err
	}
	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strings.ToUpper(table)),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("published invalidation for %s (partition %d, offset %d)\n", table, part, off)
	return nil
}

func main() {
	cfg := config.FromEnv()
	server := flag.String("server", getenv("FEATURESERVER_URL", "http://localhost:8080"), "feature server base URL")
	service := flag.String("service", "citibike", "service to query")
	table := flag.String("table", "CITIBIKE.PUBLIC.STATIONS", "table whose cache generation is checked and invalidated")
	skipKafka := flag.Bool("skip-kafka", false, "do not publish an invalidation event")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := testRedis(ctx, cfg.Cache.RedisAddr, *table); err != nil {
		fmt.Println("Redis error:", err)
		os.Exit(1)
	}
	if err := testFeatureServer(ctx, httpclient.NewOutbound(), *server, *service); err != nil {
		fmt.Println("Feature server error:", err)
		os.Exit(1)
	}
	if !*skipKafka {
		if err := publishInvalidation(config.SplitCSV(cfg.Invalidation.Brokers), cfg.Invalidation.Topic, *table); err != nil {
			fmt.Println("Kafka error:", err)
			os.Exit(1)
		}
	}
	fmt.Println("All checks completed")
}
