package media

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const imageMimePrefix = "image/"

// sniff detects the content type from the leading bytes, ignoring what the client claims.
func sniff(head []byte) *mimetype.MIME {
	return mimetype.Detect(head)
}

func isImage(mt *mimetype.MIME) bool {
	return mt != nil && strings.HasPrefix(mt.String(), imageMimePrefix)
}

// extensionFor prefers the sniffed extension and falls back to the client file name.
func extensionFor(mt *mimetype.MIME, filename string) string {
	if mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return strings.ToLower(path.Ext(filename))
}
