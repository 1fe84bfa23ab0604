// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package requestutil

import (
	"encoding/json"
	"mime"
	"net/http"

	"go.credrelay.dev/internal/httputil/httperr"
)

// maxJSONBodyBytes bounds the size of JSON request bodies.
const maxJSONBodyBytes = 1 << 20

// DecodeJSONBody decodes the JSON body of r into v. The returned errors are httperr Responders.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	if contentType := r.Header.Get("Content-Type"); len(contentType) != 0 {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return httperr.New(http.StatusUnsupportedMediaType, "content type must be application/json")
		}
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(v); err != nil {
		return httperr.Wrap(http.StatusBadRequest, "invalid request body", err)
	}

	return nil
}
