package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/middleware"
	"github.com/Shimizu-Technology/holo-search-api/internal/services/holodex"
)

// maxProxyBody caps a forwarded POST body.
const maxProxyBody = 1 << 20

// ProxyUpstream relays a request to the upstream API with the caller's
// X-APIKEY. Successful GET replies may be served from cache; the X-Cache
// header says which.
// GET|POST /api/v2/*path
func (h *Handler) ProxyUpstream(c *gin.Context) {
	if h.Proxy == nil {
		errorJSON(c, http.StatusNotFound, "not_configured", "Upstream proxy is disabled")
		return
	}

	var body []byte
	if c.Request.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxProxyBody+1))
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "Could not read request body")
			return
		}
		if len(body) > maxProxyBody {
			errorJSON(c, http.StatusRequestEntityTooLarge, "body_too_large", "Request body exceeds 1 MiB")
			return
		}
	}

	resp, err := h.Proxy.Forward(c.Request.Context(), c.Request.Method, c.Param("path"),
		c.Request.URL.RawQuery, c.GetHeader(middleware.HeaderAPIKey), body)
	switch {
	case errors.Is(err, holodex.ErrBadPath):
		errorJSON(c, http.StatusBadRequest, "invalid_path", "Invalid upstream path")
		return
	case err != nil:
		log.Printf("❌ Proxy %s %s failed: %v", c.Request.Method, c.Param("path"), err)
		errorJSON(c, http.StatusBadGateway, "upstream_unavailable", "Upstream request failed")
		return
	}

	if resp.Cached {
		log.Printf("⚡ Serving cached: %s", c.Param("path"))
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// ChannelImage relays a channel avatar so browsers can load it from this
// origin. Browsers may cache it for a day.
// GET /api/statics/channelImg/:channel_id
func (h *Handler) ChannelImage(c *gin.Context) {
	if h.Proxy == nil {
		errorJSON(c, http.StatusNotFound, "not_configured", "Upstream proxy is disabled")
		return
	}

	resp, err := h.Proxy.ChannelImage(c.Request.Context(), c.Param("channel_id"))
	switch {
	case errors.Is(err, holodex.ErrBadPath), errors.Is(err, holodex.ErrImageNotFound):
		errorJSON(c, http.StatusNotFound, "not_found", "Image not found")
		return
	case err != nil:
		log.Printf("❌ Channel image proxy failed for %s: %v", c.Param("channel_id"), err)
		errorJSON(c, http.StatusBadGateway, "upstream_unavailable", "Upstream request failed")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, resp.ContentType, resp.Body)
}
