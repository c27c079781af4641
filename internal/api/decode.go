package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON object body into dst. An empty body leaves dst
// zero-valued so field validation reports what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError(model.KindInvalidFormat, "body", "invalid json")
	}
	return nil
}
