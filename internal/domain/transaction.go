package domain

// RawTransaction is a provider transaction persisted verbatim.
// Corresponds to raw_transactions table in PostgreSQL. Never deleted.
type RawTransaction struct {
	Signature string // PK, globally unique
	Slot      int64
	BlockTime *int64 // Unix seconds, nullable (provider may omit)
	Payload   []byte // opaque serialized provider JSON
	CreatedAt int64  // record creation timestamp (ms)
	UpdatedAt int64  // last upsert timestamp (ms)
}

// SyncState tracks per-wallet ingestion progress.
// Corresponds to sync_state table in PostgreSQL, keyed by wallet.
type SyncState struct {
	Wallet       string
	LastBefore   *string // opaque pagination cursor; nil before first page and after completion
	VerifiedSlot *int64  // highest slot fully covered by tail sync
	FullScanAt   *int64  // Unix ms of last completed backfill
	CreatedAt    int64
	UpdatedAt    int64
}

// ReconcileAudit is one append-only reconciliation record.
// Corresponds to reconcile_audits table in PostgreSQL.
type ReconcileAudit struct {
	ID               int64 // BIGSERIAL primary key
	Wallet           string
	FromSlot         int64
	ToSlot           int64
	CountRaw         int    // raw signatures stored in range after reconcile
	CountWalletTx    int    // wallet events stored in range after reconcile
	SignatureSetHash string // SHA-256 over sorted signatures, hex
	OK               bool
	CreatedAt        int64
}
