package binancefuture

import (
	"encoding/json"
	"fmt"
)

// CombinedStreamFrame represents one message from the combined-stream
// endpoint: {"stream":"btcusdt@depth@100ms","data":{...}}. Data is kept raw
// so the frame can be forwarded downstream byte-identical.
type CombinedStreamFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// WSEventKind is the minimal envelope needed to route a stream payload.
type WSEventKind struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
}

// WSDepthEvent represents an incremental order book update from WebSocket
type WSDepthEvent struct {
	EventType         string     `json:"e"`
	EventTime         int64      `json:"E"`
	TransactionTime   int64      `json:"T"`
	Symbol            string     `json:"s"`
	FirstUpdateID     int64      `json:"U"`
	FinalUpdateID     int64      `json:"u"`
	PrevFinalUpdateID int64      `json:"pu"`
	Bids              [][]string `json:"b"`
	Asks              [][]string `json:"a"`
}

// WSAggTradeEvent represents aggregated trade data from WebSocket
type WSAggTradeEvent struct {
	EventType    string  `json:"e"`
	EventTime    int64   `json:"E"`
	Symbol       string  `json:"s"`
	ID           int64   `json:"a"`
	Price        float64 `json:"p,string"`
	Quantity     float64 `json:"q,string"`
	FirstTradeID int64   `json:"f"`
	LastTradeID  int64   `json:"l"`
	TradeTime    int64   `json:"T"`
	IsBuyerMaker bool    `json:"m"`
}

// WSMiniTickerEvent represents mini ticker data from WebSocket
type WSMiniTickerEvent struct {
	EventType   string  `json:"e"`
	EventTime   int64   `json:"E"`
	Symbol      string  `json:"s"`
	ClosePrice  float64 `json:"c,string"`
	OpenPrice   float64 `json:"o,string"`
	HighPrice   float64 `json:"h,string"`
	LowPrice    float64 `json:"l,string"`
	Volume      float64 `json:"v,string"`
	QuoteVolume float64 `json:"q,string"`
}

// ParseCombinedStreamFrame decodes the combined-stream envelope.
func ParseCombinedStreamFrame(data []byte) (*CombinedStreamFrame, error) {
	var frame CombinedStreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("failed to parse combined stream frame: %w", err)
	}
	if frame.Stream == "" || len(frame.Data) == 0 {
		return nil, fmt.Errorf("combined stream frame missing stream or data")
	}
	return &frame, nil
}

// ParseEventKind peeks at the event type and symbol of a stream payload.
func ParseEventKind(data []byte) (*WSEventKind, error) {
	var kind WSEventKind
	if err := json.Unmarshal(data, &kind); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}
	return &kind, nil
}

// ParseDepthEvent decodes a depthUpdate payload.
func ParseDepthEvent(data []byte) (*WSDepthEvent, error) {
	var event WSDepthEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse depth event: %w", err)
	}
	return &event, nil
}

// ParseAggTradeEvent decodes an aggTrade payload.
func ParseAggTradeEvent(data []byte) (*WSAggTradeEvent, error) {
	var event WSAggTradeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse aggregated trade event: %w", err)
	}
	return &event, nil
}

// ParseMiniTickerEvent decodes a 24hrMiniTicker payload.
func ParseMiniTickerEvent(data []byte) (*WSMiniTickerEvent, error) {
	var event WSMiniTickerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse mini ticker event: %w", err)
	}
	return &event, nil
}
