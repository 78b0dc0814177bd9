package helius

import "encoding/json"

// Transaction is one parsed transaction from the enhanced-transactions API.
// Only the fields the normalizer consumes are decoded strictly; Raw keeps the
// full provider payload for opaque persistence.
type Transaction struct {
	Signature       string           `json:"signature"`
	Slot            int64            `json:"slot"`
	Timestamp       *int64           `json:"timestamp"` // Unix seconds, nullable
	Fee             int64            `json:"fee"`       // native base units
	Source          string           `json:"source"`
	Type            string           `json:"type"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	Instructions    []Instruction    `json:"instructions"`
	Events          Events           `json:"events"`

	Raw json.RawMessage `json:"-"`
}

// TokenTransfer is one SPL token movement.
type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"` // decimals-adjusted UI amount
}

// NativeTransfer is one SOL movement in base units.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// Instruction carries only the program identifier of a top-level instruction.
type Instruction struct {
	ProgramID string `json:"programId"`
}

// Events holds structured event payloads the provider already parsed.
// Swap stays raw: its layout varies by program and the normalizer only
// needs presence.
type Events struct {
	Swap json.RawMessage `json:"swap"`
}

// HasSwap reports whether the provider supplied a structured swap payload.
func (e Events) HasSwap() bool {
	return len(e.Swap) > 0 && string(e.Swap) != "null"
}

// errorEnvelope is the provider's error body.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}
