package chi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

const tokenBytes = 16

// writeMultipartFrame sends data as the single part of a multipart/related
// response, the framing DICOMweb viewers expect for frame retrieval.
func writeMultipartFrame(w http.ResponseWriter, location string, data []byte) error {
	boundary, err := randomToken()
	if err != nil {
		return err
	}
	contentID, err := randomToken()
	if err != nil {
		return err
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return fmt.Errorf("set boundary: %w", err)
	}

	w.Header().Set("Content-Type", fmt.Sprintf(
		`multipart/related; start=%s; type="application/octet-stream"; boundary="%s"`, contentID, boundary))
	w.WriteHeader(http.StatusOK)

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Location": {location},
		"Content-ID":       {contentID},
		"Content-Type":     {"application/octet-stream"},
	})
	if err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	return mw.Close()
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
