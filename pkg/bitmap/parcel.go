// Package bitmap parses `<block height>.bitmap` claims.
package bitmap

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
)

const Suffix = ".bitmap"

var (
	ErrMissingSuffix = errors.New("missing .bitmap suffix")
	ErrInvalidParcel = errors.New("parcel must be a block height without leading zeros")
)

// ParseParcel returns the block height claimed by a bitmap inscription text.
// Only `<digits>.bitmap` is accepted, with no sign, whitespace or leading zero (except "0").
func ParseParcel(text string) (uint64, error) {
	digits, ok := strings.CutSuffix(text, Suffix)
	if !ok {
		return 0, errors.WithStack(errors.Join(ErrMissingSuffix, errs.InvalidArgument))
	}
	if digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return 0, errors.WithStack(errors.Join(ErrInvalidParcel, errs.InvalidArgument))
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, errors.WithStack(errors.Join(ErrInvalidParcel, errs.InvalidArgument))
		}
	}
	height, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.Join(ErrInvalidParcel, errs.InvalidArgument), err.Error())
	}
	return height, nil
}

// IsClaimable reports whether a parcel can be claimed at the given tip height.
func IsClaimable(parcel, tipHeight uint64) bool {
	return parcel <= tipHeight
}
