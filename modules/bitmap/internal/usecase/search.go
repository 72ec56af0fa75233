package usecase

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
)

type searchKey struct {
	name  string
	start int
	limit int
}

// SearchBRCText searches text inscriptions by name. Results are cached for a short time.
func (u *Usecase) SearchBRCText(ctx context.Context, name string, start, limit int) ([]json.RawMessage, error) {
	key := searchKey{name: name, start: start, limit: limit}
	if items, ok := u.searchCache.Get(key); ok {
		logger.DebugContext(ctx, "BRC text search cache hit", slogx.String("name", name))
		return items, nil
	}

	items, err := u.textSearch.SearchText(ctx, name, start, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search text inscriptions")
	}
	u.searchCache.Add(key, items)
	return items, nil
}
