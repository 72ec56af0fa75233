package ordinals

// Tag is the key of an envelope field. Unrecognized odd tags are ignored, unrecognized even tags are flagged.
type Tag uint8

const (
	TagBody    Tag = 0
	TagPointer Tag = 2

	TagContentType     Tag = 1
	TagParent          Tag = 3
	TagMetadata        Tag = 5
	TagMetaprotocol    Tag = 7
	TagContentEncoding Tag = 9
	TagDelegate        Tag = 11

	// TagNop is unrecognized
	TagNop Tag = 255
)

// IsChunked reports whether the tag's value may span several pushes.
func (t Tag) IsChunked() bool {
	return t == TagMetadata
}

func (t Tag) Bytes() []byte {
	if t == TagBody {
		return []byte{} // body tag is empty data push
	}
	return []byte{byte(t)}
}
