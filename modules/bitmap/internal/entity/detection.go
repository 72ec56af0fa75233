package entity

import "time"

type DetectionStatus string

const (
	// DetectionStatusValid is a parcel claim at or below the current block height.
	DetectionStatusValid DetectionStatus = "valid"

	// DetectionStatusInvalidFormat is a `.bitmap` text that isn't `<parcel>.bitmap`.
	DetectionStatusInvalidFormat DetectionStatus = "invalid_format"

	// DetectionStatusFutureBlock is a parcel claim above the current block height.
	DetectionStatusFutureBlock DetectionStatus = "future_block"
)

func (s DetectionStatus) String() string {
	return string(s)
}

func (s DetectionStatus) IsValid() bool {
	switch s {
	case DetectionStatusValid, DetectionStatusInvalidFormat, DetectionStatusFutureBlock:
		return true
	}
	return false
}

// Detection is a bitmap inscription observed in the mempool.
type Detection struct {
	InscriptionId string
	Text          string
	ReferenceURL  string
	Parcel        *uint64
	Status        DetectionStatus
	// TipHeight is the block height known at detection time. Zero if unknown.
	TipHeight  uint64
	DetectedAt time.Time
}
