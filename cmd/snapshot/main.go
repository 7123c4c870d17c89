// snapshot fetches one REST snapshot from iTick and prints the data to stdout.
// Usage: go run ./cmd/snapshot --kind quote --category forex --region GB --code XAUUSD
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/itick-stream/internal/api"
	"github.com/rickgao/itick-stream/internal/auth"
	"github.com/rickgao/itick-stream/internal/config"
	"github.com/rickgao/itick-stream/internal/logging"
	"github.com/rickgao/itick-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty = defaults)")
	category := flag.String("category", "", "instrument category (default from rest.category)")
	region := flag.String("region", "", "instrument region (default from rest.region)")
	code := flag.String("code", "", "instrument code (default from rest.code)")
	kind := flag.String("kind", "tick", "snapshot kind: tick, quote, depth, kline")
	ktype := flag.Int("ktype", int(api.KType1Min), "kline period (1=1m ... 10=1M)")
	limit := flag.Int("limit", 10, "kline candle count")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only the payload.
	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	creds, err := auth.LoadCredentials(cfg.Stream.Token, cfg.Stream.TokenFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	in := api.Instrument{
		Category: pick(*category, cfg.REST.Category),
		Region:   pick(*region, cfg.REST.Region),
		Code:     pick(*code, cfg.REST.Code),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(cfg.REST.BaseURL, creds.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.REST.Timeout),
		api.WithRetries(cfg.REST.MaxRetries, time.Second),
		api.WithUserAgent(version.UserAgent()),
	)

	resp, err := fetch(ctx, client, *kind, in, api.GetKlineOptions{KType: api.KType(*ktype), Limit: *limit})
	if err != nil {
		logger.Error("snapshot failed", "kind", *kind, "code", in.Code, "error", err)
		closer.Close()
		os.Exit(1)
	}

	logger.Info("snapshot fetched", "kind", *kind, "category", in.Category, "region", in.Region, "code", in.Code)

	if err := printJSON(resp.Data); err != nil {
		logger.Error("failed to print snapshot", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

// fetcher is the subset of api.Client the command needs.
type fetcher interface {
	GetTick(ctx context.Context, in api.Instrument) (*api.Response, error)
	GetQuote(ctx context.Context, in api.Instrument) (*api.Response, error)
	GetDepth(ctx context.Context, in api.Instrument) (*api.Response, error)
	GetKline(ctx context.Context, in api.Instrument, opts api.GetKlineOptions) (*api.Response, error)
}

func fetch(ctx context.Context, c fetcher, kind string, in api.Instrument, kline api.GetKlineOptions) (*api.Response, error) {
	switch kind {
	case "tick":
		return c.GetTick(ctx, in)
	case "quote":
		return c.GetQuote(ctx, in)
	case "depth":
		return c.GetDepth(ctx, in)
	case "kline":
		return c.GetKline(ctx, in, kline)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func pick(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

func printJSON(data json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
