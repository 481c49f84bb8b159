package runpod

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// EncodeImage encodes image bytes the way the worker embeds them in its
// output.
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeImage extracts the raw image bytes from a worker output. A missing
// or empty image, or an output that reports an error, is a *RemoteError, so
// DecodeImage inverts EncodeImage for non-empty images only.
func DecodeImage(out *Output) ([]byte, error) {
	if out == nil {
		return nil, &RemoteError{Message: "no output in response"}
	}
	if hasError(out.Error) {
		return nil, &RemoteError{Message: orUnknown(errorMessage(out.Error))}
	}
	encoded := strings.TrimSpace(out.Image)
	if encoded == "" {
		return nil, &RemoteError{Message: "no image in response"}
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(encoded, "=") && len(encoded)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(encoded)
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("malformed image payload: %v", err)}
	}
	return data, nil
}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngMagic)
}

func orUnknown(msg string) string {
	return lo.Ternary(strings.TrimSpace(msg) == "", "unknown error", msg)
}
