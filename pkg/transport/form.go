package transport

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/url"
)

// parseMultipart extracts the non-file fields of a multipart/form-data body.
func parseMultipart(contentType string, body []byte) (url.Values, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}

	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxFormMemory)
	if err != nil {
		return nil, fmt.Errorf("parsing multipart body: %w", err)
	}
	defer form.RemoveAll()

	values := make(url.Values, len(form.Value))
	for k, vs := range form.Value {
		values[k] = append(values[k], vs...)
	}
	return values, nil
}
