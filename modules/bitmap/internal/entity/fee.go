package entity

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
)

// TxFeeInfo is the fee of a transaction relative to its size. Rates are in sat/vB.
type TxFeeInfo struct {
	TxHash    chainhash.Hash
	Fee       int64
	Vsize     int64
	Confirmed bool
	// AdjustedVsize is the virtual size after sigops adjustment, equal to Vsize when unknown.
	AdjustedVsize decimal.Decimal
	FeeRate       decimal.Decimal
	// EffectiveFeeRate accounts for CPFP ancestors and descendants.
	EffectiveFeeRate decimal.Decimal
}
