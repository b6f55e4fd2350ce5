package binancefuture

// OrderBookResponse represents the /fapi/v1/depth payload. Prices and
// quantities stay as strings; the book layer decides how to interpret them.
type OrderBookResponse struct {
	LastUpdateID    int64      `json:"lastUpdateId"`
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Bids            [][]string `json:"bids"`
	Asks            [][]string `json:"asks"`
}

// ServerTimeResponse represents the server time response
type ServerTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}
