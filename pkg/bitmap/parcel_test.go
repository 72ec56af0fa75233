package bitmap

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
)

func TestParseParcel(t *testing.T) {
	tests := []struct {
		input       string
		expected    uint64
		expectedErr error
	}{
		{input: "0.bitmap", expected: 0},
		{input: "1.bitmap", expected: 1},
		{input: "840000.bitmap", expected: 840000},
		{input: "18446744073709551615.bitmap", expected: 18446744073709551615},
		{input: "18446744073709551616.bitmap", expectedErr: ErrInvalidParcel},
		{input: ".bitmap", expectedErr: ErrInvalidParcel},
		{input: "00.bitmap", expectedErr: ErrInvalidParcel},
		{input: "012.bitmap", expectedErr: ErrInvalidParcel},
		{input: "+12.bitmap", expectedErr: ErrInvalidParcel},
		{input: "-1.bitmap", expectedErr: ErrInvalidParcel},
		{input: " 12.bitmap", expectedErr: ErrInvalidParcel},
		{input: "12a.bitmap", expectedErr: ErrInvalidParcel},
		{input: "１２.bitmap", expectedErr: ErrInvalidParcel},
		{input: "12.bitmap.bitmap", expectedErr: ErrInvalidParcel},
		{input: "12.BITMAP", expectedErr: ErrMissingSuffix},
		{input: "12.bitmap ", expectedErr: ErrMissingSuffix},
		{input: "", expectedErr: ErrMissingSuffix},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actual, err := ParseParcel(tt.input)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.True(t, errors.Is(err, errs.InvalidArgument))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestIsClaimable(t *testing.T) {
	assert.True(t, IsClaimable(840000, 840000))
	assert.True(t, IsClaimable(0, 0))
	assert.False(t, IsClaimable(840001, 840000))
}
