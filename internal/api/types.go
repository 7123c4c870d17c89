package api

import (
	"encoding/json"
	"time"
)

// Response is the envelope every iTick REST endpoint returns.
type Response struct {
	Code int             `json:"code"` // 0 on success
	Msg  string          `json:"msg"`  // Set when code is non-zero
	Data json.RawMessage `json:"data"` // Left opaque
}

// Instrument identifies what to query: /{Category}/...?region=&code=
type Instrument struct {
	Category string // stock, forex, indices, crypto, future, fund
	Region   string // e.g. HK, US, GB
	Code     string // e.g. 700, AAPL, EURUSD
}

// KType is a kline period.
type KType int

const (
	KType1Min   KType = 1
	KType5Min   KType = 2
	KType10Min  KType = 3
	KType30Min  KType = 4
	KType1Hour  KType = 5
	KType2Hour  KType = 6
	KType4Hour  KType = 7
	KType1Day   KType = 8
	KType1Week  KType = 9
	KType1Month KType = 10
)

// GetKlineOptions configures a GetKline request.
type GetKlineOptions struct {
	KType KType
	End   time.Time // Optional, sent as et in unix millis
	Limit int       // Optional
}
