package mempool

import (
	"encoding/json"
	"time"
)

const (
	// HeartbeatAck is the literal reply of the feed to a keep-alive ping.
	HeartbeatAck = "ok"

	MessageTypeMempool = "Mempool"

	// BitmapSuffix marks an inscription text as a bitmap parcel claim.
	BitmapSuffix = ".bitmap"

	DefaultReferenceBaseURL = "https://mempool.space"
)

// Envelope is an inbound message of the mempool feed, tagged by its message type.
type Envelope struct {
	MsgType string          `json:"msg_type"`
	Data    json.RawMessage `json:"data"`
}

type MempoolData struct {
	Ordinals []OrdinalRecord `json:"ordinals"`
}

type OrdinalRecord struct {
	InscriptionId   string          `json:"inscription_id"`
	InscriptionData InscriptionData `json:"inscription_data"`
}

type InscriptionData struct {
	// Body is the base64 encoded inscription content.
	Body string `json:"body"`
}

// Notification is emitted for every ordinal record whose text ends with ".bitmap".
type Notification struct {
	InscriptionId string    `json:"inscriptionId"`
	DecodedText   string    `json:"decodedText"`
	ReferenceURL  string    `json:"referenceUrl"`
	ObservedAt    time.Time `json:"observedAt"`
}
