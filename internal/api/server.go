// Package api exposes the block codec over HTTP for tooling that wants to
// recode tile payloads without linking the Go packages.
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tileflow/internal/version"
	"github.com/samcharles93/tileflow/pkg/mxfp4"
)

// MaxPayloadWords caps a single recode request.
const MaxPayloadWords = 1 << 24

// Server serves the codec endpoints.
type Server struct{}

func NewServer() *Server {
	return &Server{}
}

// Register wires the routes onto e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/encode", s.handleEncode)
	e.POST("/v1/decode", s.handleDecode)
	e.GET("/v1/version", s.handleVersion)
}

func (s *Server) handleEncode(c *echo.Context) error {
	req, err := bindRecodeRequest(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	words, err := req.words()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(words) != req.Elements {
		return writeBadRequest(c, "payload does not hold the declared element count")
	}

	packed := make([]uint32, mxfp4.PackedWords(req.Elements))
	mxfp4.Encode(packed, words, req.Elements)
	return c.JSON(http.StatusOK, RecodeResponse{
		ID:       "recode_" + uuid.NewString(),
		Elements: req.Elements,
		Words:    len(packed),
		Payload:  encodePayload(packed),
	})
}

func (s *Server) handleDecode(c *echo.Context) error {
	req, err := bindRecodeRequest(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	words, err := req.words()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(words) != mxfp4.PackedWords(req.Elements) {
		return writeBadRequest(c, "payload does not hold the declared packed word count")
	}

	full := make([]uint32, req.Elements)
	mxfp4.Decode(full, words, req.Elements)
	return c.JSON(http.StatusOK, RecodeResponse{
		ID:       "recode_" + uuid.NewString(),
		Elements: req.Elements,
		Words:    len(full),
		Payload:  encodePayload(full),
	})
}

func (s *Server) handleVersion(c *echo.Context) error {
	info := version.Resolve()
	return c.JSON(http.StatusOK, map[string]string{
		"version": info.Version,
		"commit":  info.Commit,
	})
}
