package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/pkg/ordinals"
)

// GetInscription looks up the reveal transaction of an inscription and parses the inscription out of it.
func (u *Usecase) GetInscription(ctx context.Context, id ordinals.InscriptionId) (*ordinals.Envelope, error) {
	revealTxHash, err := u.inscriptions.GetRevealTxID(ctx, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reveal transaction id")
	}
	tx, err := u.mempoolSpace.GetRawTransaction(ctx, revealTxHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reveal transaction")
	}
	// the inscription id is derived from the reveal transaction
	envelope, err := ordinals.FindInscription(tx, ordinals.NewInscriptionId(revealTxHash, id.Index))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find inscription")
	}
	return envelope, nil
}
