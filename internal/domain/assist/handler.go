package assist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/clinical-ai/internal/platform/auth"
)

// streamErrorMarker terminates an interrupted stream. Once the first chunk is
// written the status line is gone, so a mid-stream failure can only be
// signaled in-band.
const streamErrorMarker = "\n[stream-error] generation interrupted\n"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "nurse")

	g := api.Group("/ai", role)
	g.POST("/assist/stream", h.StreamAssist)
	g.POST("/documentation", h.Documentation)
}

// Request is the body of both assist endpoints.
type Request struct {
	Type  string          `json:"type"`
	Input json.RawMessage `json:"input"`
}

// StreamAssist runs a streaming assistance request, writing text chunks as
// they arrive. Errors before the first chunk map to normal HTTP errors;
// after that the marker line is the only failure signal available.
func (h *Handler) StreamAssist(c echo.Context) error {
	if auth.UserIDFromContext(c.Request().Context()) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res := c.Response()
	wrote := false
	err := h.svc.Stream(c.Request().Context(), req.Type, req.Input, func(delta string) error {
		if !wrote {
			res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
			res.Header().Set(echo.HeaderCacheControl, "no-cache")
			res.Header().Set("X-Accel-Buffering", "no")
			res.WriteHeader(http.StatusOK)
			wrote = true
		}
		if _, err := res.Write([]byte(delta)); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		if !wrote {
			if isValidationError(err) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
		}
		res.Write([]byte(streamErrorMarker))
		res.Flush()
	}
	return nil
}

// Documentation handles the blocking documentation task types.
func (h *Handler) Documentation(c echo.Context) error {
	if auth.UserIDFromContext(c.Request().Context()) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch req.Type {
	case TypeTranscribeVoice:
		out, err := h.svc.Transcribe(c.Request().Context(), req.Input)
		if err != nil {
			return documentationError(err)
		}
		return c.JSON(http.StatusOK, out)
	case TypeExtractMedicalInfo:
		out, err := h.svc.Extract(c.Request().Context(), req.Input)
		if err != nil {
			return documentationError(err)
		}
		return c.JSON(http.StatusOK, out)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid documentation type: "+req.Type)
}

func documentationError(err error) error {
	if isValidationError(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
