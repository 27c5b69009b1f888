package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/kjstillabower/weather-journal-service/internal/models"
)

// DefaultMaxBodyBytes caps request bodies on POST /addWeather.
const DefaultMaxBodyBytes = 100 << 10

// ErrInvalidPayload is returned when the body is neither a JSON object nor a form.
var ErrInvalidPayload = errors.New("invalid weather entry payload")

// ErrPayloadTooLarge is returned when the body exceeds the configured limit.
var ErrPayloadTooLarge = errors.New("weather entry payload too large")

// DecodeEntry reads a weather entry from the request body. URL-encoded forms
// become string fields (repeated keys become string lists); anything else is
// parsed as a JSON object with numbers kept as json.Number. An empty body is
// an empty entry. Field contents are not checked.
func DecodeEntry(r *http.Request, maxBytes int64) (models.Entry, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, ErrInvalidPayload
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrPayloadTooLarge
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return models.Entry{}, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		return decodeForm(body)
	}
	return decodeJSON(body)
}

func decodeJSON(body []byte) (models.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var entry models.Entry
	if err := dec.Decode(&entry); err != nil || entry == nil {
		return nil, ErrInvalidPayload
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrInvalidPayload
	}
	return entry, nil
}

func decodeForm(body []byte) (models.Entry, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, ErrInvalidPayload
	}
	entry := make(models.Entry, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			entry[k] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		entry[k] = list
	}
	return entry, nil
}
