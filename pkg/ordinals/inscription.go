package ordinals

import (
	"strings"
	"unicode/utf8"
)

type Inscription struct {
	Content         []byte
	ContentEncoding string
	ContentType     string
	Delegate        *InscriptionId
	Metadata        []byte
	Metaprotocol    string
	Parent          *InscriptionId
	Pointer         *uint64
}

// IsText reports whether the inscription is uncompressed UTF-8 text.
func (i Inscription) IsText() bool {
	if i.ContentEncoding != "" {
		return false
	}
	if i.ContentType != "" && !strings.HasPrefix(i.ContentType, "text/") {
		return false
	}
	return utf8.Valid(i.Content)
}

// Text returns the content as a string. The result is meaningful only if IsText is true.
func (i Inscription) Text() string {
	return string(i.Content)
}
