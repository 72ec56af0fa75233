package ordinals

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
)

// InscriptionId is `<reveal txid>i<index>`, the index being the envelope position in the reveal transaction.
type InscriptionId struct {
	TxHash chainhash.Hash
	Index  uint32
}

func NewInscriptionId(txHash chainhash.Hash, index uint32) InscriptionId {
	return InscriptionId{
		TxHash: txHash,
		Index:  index,
	}
}

func (i InscriptionId) String() string {
	return fmt.Sprintf("%si%d", i.TxHash.String(), i.Index)
}

func NewInscriptionIdFromString(s string) (InscriptionId, error) {
	txid, index, ok := strings.Cut(s, "i")
	if !ok {
		return InscriptionId{}, errors.Wrap(errs.InvalidArgument, "invalid inscription id: missing separator")
	}
	if len(txid) != chainhash.MaxHashStringSize {
		return InscriptionId{}, errors.Wrapf(errs.InvalidArgument, "invalid inscription id: txid must be %d characters", chainhash.MaxHashStringSize)
	}
	txHash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return InscriptionId{}, errors.Wrap(errors.Join(errs.InvalidArgument, err), "invalid inscription id: can't parse txid")
	}
	n, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return InscriptionId{}, errors.Wrap(errors.Join(errs.InvalidArgument, err), "invalid inscription id: can't parse index")
	}
	return InscriptionId{
		TxHash: *txHash,
		Index:  uint32(n),
	}, nil
}

// MarshalText implements encoding.TextMarshaler
func (i InscriptionId) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (i *InscriptionId) UnmarshalText(data []byte) error {
	parsed, err := NewInscriptionIdFromString(string(data))
	if err != nil {
		return errors.WithStack(err)
	}
	*i = parsed
	return nil
}
