package query

import "github.com/google/uuid"

// ClassResponse is the supply and reward state of one share class.
type ClassResponse struct {
	AssetKind         string          `json:"asset_kind"`
	TotalSupplyCap    int64           `json:"total_supply_cap"`
	CirculatingSupply int64           `json:"circulating_supply"`
	Burnable          bool            `json:"burnable"`
	Version           int64           `json:"version"`
	Rewards           []RewardSummary `json:"rewards,omitempty"`
	AsOfSequence      int64           `json:"as_of_sequence"`
}

// RewardSummary is one reward kind's accumulator and undistributed vault.
// The accumulator is a decimal string; it outgrows any fixed-width integer.
type RewardSummary struct {
	RewardKind   string `json:"reward_kind"`
	Accumulator  string `json:"accumulator"`
	VaultBalance int64  `json:"vault_balance"`
}

// ShareResponse is one live share with its claimable amounts per reward
// kind, computed at query time from the projected accumulator and debt.
type ShareResponse struct {
	ShareID      uuid.UUID       `json:"share_id"`
	AssetKind    string          `json:"asset_kind"`
	Balance      int64           `json:"balance"`
	Version      int64           `json:"version"`
	Pending      []PendingReward `json:"pending,omitempty"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// PendingReward is the claimable amount for one reward kind.
type PendingReward struct {
	RewardKind string `json:"reward_kind"`
	Amount     int64  `json:"amount"`
}

// ClaimHistoryResponse is one settled payout.
type ClaimHistoryResponse struct {
	ShareID      uuid.UUID `json:"share_id"`
	AssetKind    string    `json:"asset_kind"`
	RewardKind   string    `json:"reward_kind"`
	Amount       int64     `json:"amount"`
	Sequence     int64     `json:"sequence"`
	ClaimedAtUs  int64     `json:"claimed_at_us"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// JournalHistoryEntry is a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	TimestampUs   int64  `json:"timestamp_us"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose balances do not sum to zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
