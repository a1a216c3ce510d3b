package api

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

// RecodeRequest carries a tile payload as base64 little-endian 32-bit
// words. Elements is the full-precision element count and must be a
// positive multiple of the codec group size.
type RecodeRequest struct {
	Elements int    `json:"elements"`
	Payload  string `json:"payload"`
}

// RecodeResponse returns the recoded payload in the same representation.
type RecodeResponse struct {
	ID       string `json:"id"`
	Elements int    `json:"elements"`
	Words    int    `json:"words"`
	Payload  string `json:"payload"`
}

// ResponseError is the error envelope body.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func bindRecodeRequest(c *echo.Context) (*RecodeRequest, error) {
	var req RecodeRequest
	if err := c.Bind(&req); err != nil {
		return nil, errors.New("malformed request body")
	}
	if req.Elements <= 0 || req.Elements%mxfp4.GroupSize != 0 {
		return nil, fmt.Errorf("elements must be a positive multiple of %d", mxfp4.GroupSize)
	}
	if req.Elements > MaxPayloadWords {
		return nil, fmt.Errorf("elements exceeds limit %d", MaxPayloadWords)
	}
	return &req, nil
}

func (r *RecodeRequest) words() ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(r.Payload)
	if err != nil {
		return nil, errors.New("payload is not valid base64")
	}
	if len(raw)%4 != 0 {
		return nil, errors.New("payload length is not word aligned")
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}

func encodePayload(words []uint32) string {
	raw := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func writeBadRequest(c *echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    "invalid_request_error",
		},
	})
}
