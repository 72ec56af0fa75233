package ordinals

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/samber/lo"
)

var protocolId = []byte("ord")

type Envelope struct {
	Inscription           Inscription
	InputIndex            uint32 // Index of input that contains the envelope
	Offset                int    // Number of envelope in the input
	PushNum               bool   // True if envelope contains pushnum opcodes
	Stutter               bool   // True if envelope matches stuttering curse structure
	IncompleteField       bool   // True if payload is incomplete
	DuplicateField        bool   // True if payload contains duplicated field
	UnrecognizedEvenField bool   // True if payload contains unrecognized even field
}

// IsCursed reports whether the envelope would be inscribed with a negative number before the jubilee.
func (e Envelope) IsCursed() bool {
	return e.InputIndex != 0 || e.Offset != 0 ||
		e.PushNum || e.Stutter ||
		e.IncompleteField || e.DuplicateField || e.UnrecognizedEvenField
}

// ParseEnvelopesFromTx returns the inscription envelopes of every tapscript witness of tx, in input order.
func ParseEnvelopesFromTx(tx *wire.MsgTx) []*Envelope {
	envelopes := make([]*Envelope, 0)
	for i, txIn := range tx.TxIn {
		tapScript, ok := extractTapScript(txIn.Witness)
		if !ok {
			continue
		}
		envelopes = append(envelopes, envelopesFromTapScript(tapScript, i)...)
	}
	return envelopes
}

// FindInscription returns the inscription with the given id from its reveal transaction.
func FindInscription(tx *wire.MsgTx, id InscriptionId) (*Envelope, error) {
	if tx.TxHash() != id.TxHash {
		return nil, errors.Wrapf(errs.InvalidArgument, "transaction %s is not the reveal transaction of %s", tx.TxHash(), id)
	}
	envelopes := ParseEnvelopesFromTx(tx)
	if int(id.Index) >= len(envelopes) {
		return nil, errors.Wrapf(errs.NotFound, "inscription %s not found, reveal transaction has %d envelopes", id, len(envelopes))
	}
	return envelopes[id.Index], nil
}

func envelopesFromTapScript(tokenizer txscript.ScriptTokenizer, inputIndex int) []*Envelope {
	envelopes := make([]*Envelope, 0)

	var stuttered bool
	for tokenizer.Next() {
		if tokenizer.Opcode() != txscript.OP_FALSE {
			continue
		}
		envelope, stutter := envelopeFromTokenizer(&tokenizer, inputIndex, len(envelopes), stuttered)
		if envelope != nil {
			envelopes = append(envelopes, envelope)
		} else {
			stuttered = stutter
		}
	}
	return envelopes
}

// pushNumValue returns the byte pushed by a small integer opcode.
func pushNumValue(opcode byte) ([]byte, bool) {
	switch {
	case opcode == txscript.OP_1NEGATE:
		return []byte{0x81}, true
	case opcode >= txscript.OP_1 && opcode <= txscript.OP_16:
		return []byte{opcode - txscript.OP_1 + 1}, true
	}
	return nil, false
}

func envelopeFromTokenizer(tokenizer *txscript.ScriptTokenizer, inputIndex int, offset int, stuttered bool) (*Envelope, bool) {
	tokenizer.Next()
	if tokenizer.Opcode() != txscript.OP_IF {
		return nil, tokenizer.Opcode() == txscript.OP_FALSE
	}

	tokenizer.Next()
	if !bytes.Equal(tokenizer.Data(), protocolId) {
		return nil, tokenizer.Opcode() == txscript.OP_FALSE
	}

	var pushNum bool
	payload := make([][]byte, 0)
	for tokenizer.Next() {
		opcode := tokenizer.Opcode()
		if opcode == txscript.OP_ENDIF {
			break
		}
		if value, ok := pushNumValue(opcode); ok {
			pushNum = true
			payload = append(payload, value)
			continue
		}
		if opcode == txscript.OP_0 {
			payload = append(payload, []byte{})
			continue
		}
		data := tokenizer.Data()
		if data == nil {
			return nil, false
		}
		payload = append(payload, data)
	}
	// incomplete envelope
	if tokenizer.Err() != nil || tokenizer.Opcode() != txscript.OP_ENDIF {
		return nil, false
	}

	// body starts after the first empty push at an even position
	fieldPayloads := payload
	var body []byte
	for i := 0; i < len(payload); i += 2 {
		if len(payload[i]) == 0 {
			fieldPayloads = payload[:i]
			body = lo.Flatten(payload[i+1:])
			break
		}
	}

	var incompleteField bool
	fields := make(envelopeFields)
	for _, chunk := range lo.Chunk(fieldPayloads, 2) {
		if len(chunk) != 2 {
			incompleteField = true
			break
		}
		tag := Tag(chunk[0][0])
		fields[tag] = append(fields[tag], chunk[1])
	}

	duplicateField := lo.SomeBy(lo.Values(fields), func(values [][]byte) bool {
		return len(values) > 1
	})

	rawContentEncoding := fields.take(TagContentEncoding)
	rawContentType := fields.take(TagContentType)
	rawDelegate := fields.take(TagDelegate)
	rawMetadata := fields.take(TagMetadata)
	rawMetaprotocol := fields.take(TagMetaprotocol)
	rawParent := fields.take(TagParent)
	rawPointer := fields.take(TagPointer)

	unrecognizedEvenField := lo.SomeBy(lo.Keys(fields), func(key Tag) bool {
		return key%2 == 0
	})

	return &Envelope{
		Inscription: Inscription{
			Content:         body,
			ContentEncoding: string(rawContentEncoding),
			ContentType:     string(rawContentType),
			Delegate:        parseInscriptionIdField(rawDelegate),
			Metadata:        rawMetadata,
			Metaprotocol:    string(rawMetaprotocol),
			Parent:          parseInscriptionIdField(rawParent),
			Pointer:         parsePointerField(rawPointer),
		},
		InputIndex:            uint32(inputIndex),
		Offset:                offset,
		PushNum:               pushNum,
		Stutter:               stuttered,
		IncompleteField:       incompleteField,
		DuplicateField:        duplicateField,
		UnrecognizedEvenField: unrecognizedEvenField,
	}, false
}

func parseInscriptionIdField(raw []byte) *InscriptionId {
	if raw == nil {
		return nil
	}
	id, err := NewInscriptionIdFromString(string(raw))
	if err != nil {
		return nil
	}
	return &id
}

// parsePointerField decodes a little-endian pointer, ignoring values that don't fit in uint64.
func parsePointerField(raw []byte) *uint64 {
	if raw == nil {
		return nil
	}
	if len(raw) > 8 && lo.SomeBy(raw[8:], func(b byte) bool { return b != 0 }) {
		return nil
	}
	buf := make([]byte, 8)
	copy(buf, raw)
	return lo.ToPtr(binary.LittleEndian.Uint64(buf))
}

type envelopeFields map[Tag][][]byte

func (f envelopeFields) take(tag Tag) []byte {
	values, ok := f[tag]
	if !ok {
		return nil
	}
	if tag.IsChunked() {
		delete(f, tag)
		return lo.Flatten(values)
	}
	first := values[0]
	if len(values) == 1 {
		delete(f, tag)
	} else {
		f[tag] = values[1:]
	}
	return first
}

func extractTapScript(witness wire.TxWitness) (txscript.ScriptTokenizer, bool) {
	// drop the annex
	if len(witness) >= 2 && len(witness[len(witness)-1]) > 0 && witness[len(witness)-1][0] == txscript.TaprootAnnexTag {
		witness = witness[:len(witness)-1]
	}
	if len(witness) < 2 {
		return txscript.ScriptTokenizer{}, false
	}
	return txscript.MakeScriptTokenizer(0, witness[len(witness)-2]), true
}
