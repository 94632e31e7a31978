package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/validate"
)

// MaxBodyBytes caps request bodies; a full backup snapshot is the largest.
const MaxBodyBytes = 64 << 20

// DecodeJSONBody decodes a single JSON document into dest, rejecting
// unknown fields, then validates its struct tags.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	if err := DecodeJSON(w, r, dest); err != nil {
		return err
	}
	return validate.Struct(dest)
}

// DecodeJSON is DecodeJSONBody without the tag validation, for payloads the
// service completes before validating.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

// ReadBody returns the raw body, capped at MaxBodyBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return data, nil
}
