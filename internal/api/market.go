package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// GetTick fetches the latest trade tick for an instrument.
func (c *Client) GetTick(ctx context.Context, in Instrument) (*Response, error) {
	return c.snapshot(ctx, "tick", in, nil)
}

// GetQuote fetches the latest quote for an instrument.
func (c *Client) GetQuote(ctx context.Context, in Instrument) (*Response, error) {
	return c.snapshot(ctx, "quote", in, nil)
}

// GetDepth fetches the order book depth for an instrument.
func (c *Client) GetDepth(ctx context.Context, in Instrument) (*Response, error) {
	return c.snapshot(ctx, "depth", in, nil)
}

// GetKline fetches candles for an instrument.
func (c *Client) GetKline(ctx context.Context, in Instrument, opts GetKlineOptions) (*Response, error) {
	if opts.KType == 0 {
		return nil, errors.New("get kline: ktype is required")
	}

	query := url.Values{}
	query.Set("kType", strconv.Itoa(int(opts.KType)))
	if !opts.End.IsZero() {
		query.Set("et", strconv.FormatInt(opts.End.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	return c.snapshot(ctx, "kline", in, query)
}

func (c *Client) snapshot(ctx context.Context, kind string, in Instrument, query url.Values) (*Response, error) {
	if in.Category == "" || in.Code == "" {
		return nil, fmt.Errorf("get %s: category and code are required", kind)
	}
	if query == nil {
		query = url.Values{}
	}
	if in.Region != "" {
		query.Set("region", in.Region)
	}
	query.Set("code", in.Code)

	resp, err := c.get(ctx, "/"+in.Category+"/"+kind, query)
	if err != nil {
		return nil, fmt.Errorf("get %s %s/%s: %w", kind, in.Region, in.Code, err)
	}
	return resp, nil
}
