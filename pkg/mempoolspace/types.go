package mempoolspace

type RecommendedFees struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

type TransactionStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

type Transaction struct {
	Txid     string            `json:"txid"`
	Version  int32             `json:"version"`
	Locktime uint32            `json:"locktime"`
	Size     int64             `json:"size"`
	Weight   int64             `json:"weight"`
	Fee      int64             `json:"fee"`
	Status   TransactionStatus `json:"status"`
}

type CPFPInfo struct {
	Ancestors            []RelatedTransaction `json:"ancestors"`
	Descendants          []RelatedTransaction `json:"descendants,omitempty"`
	EffectiveFeePerVsize float64              `json:"effectiveFeePerVsize"`
	AdjustedVsize        float64              `json:"adjustedVsize"`
}

type RelatedTransaction struct {
	Txid   string `json:"txid"`
	Fee    int64  `json:"fee"`
	Weight int64  `json:"weight"`
}
