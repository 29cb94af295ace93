package imaging

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
)

// EncodeFileBase64 reads the file at path and returns its contents as standard base64.
// With dataURI set the result carries a "data:<mime>;base64," prefix.
func EncodeFileBase64(path string, dataURI bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if !dataURI {
		return encoded, nil
	}
	return "data:" + http.DetectContentType(data) + ";base64," + encoded, nil
}
