package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/abdusco/shortly/internal"
	"github.com/abdusco/shortly/internal/links"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type LinkHandler struct {
	service *links.Service
	baseURL string
}

func NewLinkHandler(service *links.Service, baseURL string) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type LinkResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	URL         string     `json:"url"`
	ShortURL    string     `json:"short_url"`
	ClickCount  int64      `json:"click_count"`
	LastClicked *time.Time `json:"last_clicked"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (h *LinkHandler) toResponse(link *internal.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		Code:        link.Code,
		URL:         link.URL,
		ShortURL:    h.baseURL + "/" + link.Code,
		ClickCount:  link.ClickCount,
		LastClicked: link.LastClicked,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req links.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.service.Create(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, h.toResponse(link))
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	all, err := h.service.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, lo.Map(all, func(link *internal.Link, _ int) LinkResponse {
		return h.toResponse(link)
	}))
}

func (h *LinkHandler) GetLink(c echo.Context) error {
	link, err := h.service.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, h.toResponse(link))
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("code")); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *LinkHandler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")

	log.Debug().Str("code", code).Msg("redirect request")

	res, err := h.service.Resolve(ctx, code)
	if err != nil {
		return toHTTPError(err)
	}

	if res.ClickErr != nil {
		log.Warn().Err(res.ClickErr).Str("code", code).Msg("click not recorded")
	}

	return c.Redirect(http.StatusFound, res.Link.URL)
}

func toHTTPError(err error) error {
	var verr *internal.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr
	case errors.Is(err, internal.ErrCodeExists):
		return echo.NewHTTPError(http.StatusConflict, "code already exists, try another").SetInternal(err)
	case errors.Is(err, internal.ErrCodeExhausted):
		return echo.NewHTTPError(http.StatusConflict, "could not generate a unique code, please specify one").SetInternal(err)
	case errors.Is(err, internal.ErrInvalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid code").SetInternal(err)
	case errors.Is(err, internal.ErrLinkNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "link not found").SetInternal(err)
	}

	log.Error().Err(err).Msg("link operation failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
