package usecase

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/bitmap-watcher/internal/subscription"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/datagateway"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSearchCacheSize = 512
	DefaultSearchCacheTTL  = time.Minute
)

// MempoolSpaceClient is the subset of mempool.space REST API used by the usecase.
type MempoolSpaceClient interface {
	GetBlockTipHeight(ctx context.Context) (uint64, error)
	GetRecommendedFees(ctx context.Context) (*mempoolspace.RecommendedFees, error)
	GetTransaction(ctx context.Context, txHash chainhash.Hash) (*mempoolspace.Transaction, error)
	GetCPFP(ctx context.Context, txHash chainhash.Hash) (*mempoolspace.CPFPInfo, error)
	GetRawTransaction(ctx context.Context, txHash chainhash.Hash) (*wire.MsgTx, error)
}

type TextSearchClient interface {
	SearchText(ctx context.Context, name string, start, limit int) ([]json.RawMessage, error)
}

type InscriptionPageClient interface {
	GetRevealTxID(ctx context.Context, inscriptionId string) (chainhash.Hash, error)
}

type Options struct {
	SearchCacheSize int
	SearchCacheTTL  time.Duration
}

type Usecase struct {
	detectionDg  datagateway.DetectionDataGateway
	mempoolSpace MempoolSpaceClient
	textSearch   TextSearchClient
	inscriptions InscriptionPageClient

	searchCache *expirable.LRU[searchKey, []json.RawMessage]
	detections  *subscription.Feed[entity.Detection]

	// tipHeight is zero until the first successful fetch.
	tipHeight atomic.Uint64
}

func New(detectionDg datagateway.DetectionDataGateway, mempoolSpace MempoolSpaceClient, textSearch TextSearchClient, inscriptions InscriptionPageClient, opts Options) *Usecase {
	if opts.SearchCacheSize <= 0 {
		opts.SearchCacheSize = DefaultSearchCacheSize
	}
	if opts.SearchCacheTTL <= 0 {
		opts.SearchCacheTTL = DefaultSearchCacheTTL
	}
	return &Usecase{
		detectionDg:  detectionDg,
		mempoolSpace: mempoolSpace,
		textSearch:   textSearch,
		inscriptions: inscriptions,
		searchCache:  expirable.NewLRU[searchKey, []json.RawMessage](opts.SearchCacheSize, nil, opts.SearchCacheTTL),
		detections:   subscription.NewFeed[entity.Detection](),
	}
}
