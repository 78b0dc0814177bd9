package domain

// MatchedSell records one SELL portion consumed from a lot.
type MatchedSell struct {
	Time        int64   // sell block time, Unix seconds
	Qty         float64 // quantity taken from the lot
	ProceedsUSD float64 // qty*price minus attributed fee
}

// Lot is a single BUY whose unconsumed quantity is matched against later
// SELLs in FIFO order. Lots live only inside a reconstruction run and are
// never persisted.
type Lot struct {
	ID           string // "<signature>:<buyTime>"
	TokenMint    string
	BuyTime      int64 // Unix seconds
	BuyQty       float64
	BuyCostUSD   *float64 // nil when the oracle had no price at buy time
	RemainingQty float64
	MatchedSells []MatchedSell

	RealizedUSD      float64
	PeakTimestamp    *int64   // candle open time of the peak bar
	PeakPriceUSD     *float64 // candle high at the peak bar
	PeakPotentialUSD float64
	RegretGapUSD     float64
}

// TokenPosition aggregates all lots of one token.
type TokenPosition struct {
	Mint             string
	Symbol           string
	Lots             []*Lot
	RealizedUSD      float64
	PeakPotentialUSD float64
	RegretGapUSD     float64
	RemainingQty     float64
	RemainingUSD     float64 // remainingQty * currentPrice, 0 when price unknown
}

// PositionReport is the full reconstruction result for one wallet.
type PositionReport struct {
	Wallet           string
	Tokens           []*TokenPosition
	RealizedUSD      float64
	PeakPotentialUSD float64
	RegretGapUSD     float64
	OpenPositionsUSD float64
	EventCount       int
	DroppedSellQty   map[string]float64 // per mint, SELL quantity with no matching lot
}
