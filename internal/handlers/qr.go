package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrlinks/internal/cache"
	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
	"github.com/cristianadrielbraun/qrlinks/internal/store"
)

// Bounds for ad-hoc renders.
const (
	minQRSize = 64
	maxQRSize = 2048
	maxURLLen = 4096
)

// normalizeHTTPURL validates and normalizes a URL string for QR generation.
// It ensures an http/https scheme, a non-empty hostname, and returns a cleaned absolute URL.
func normalizeHTTPURL(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", fmt.Errorf("URL parameter is required")
	}
	// If missing scheme, default to https
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	if len(v) > maxURLLen {
		return "", fmt.Errorf("URL is too long")
	}
	u, err := url.ParseRequestURI(v)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("only http and https URLs are supported")
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a valid host")
	}
	return u.String(), nil
}

// QRCodeHandler renders a QR code for an arbitrary URL.
// Query: url (required), mode=colored|plain, size in pixels.
func (h *Handler) QRCodeHandler(c *gin.Context) {
	normalizedURL, err := normalizeHTTPURL(c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := qrrender.ModeColored
	if m := c.Query("mode"); m != "" {
		if mode, err = qrrender.ParseMode(m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	size := h.cfg.Render.SizePx
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer"})
			return
		}
		size = clampSize(n)
	}

	req := qrrender.Request{Content: normalizedURL, Mode: mode, SizePx: size, Margin: h.cfg.Render.Margin}
	png, err := h.render(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("QR generation failed: %v", err)})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// LinkQRHandler serves /qr/<id>.png with the link's logo policy applied.
// download=1 turns the response into an attachment.
func (h *Handler) LinkQRHandler(c *gin.Context) {
	file := c.Param("file")
	id, ok := strings.CutSuffix(file, ".png")
	if !ok || id == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	ctx := c.Request.Context()
	link, err := h.store.GetLink(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		logging.Error("Link lookup failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load link"})
		return
	}

	req, err := h.linkRequest(ctx, link)
	if err != nil {
		logging.Error("Logo lookup failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load logo"})
		return
	}
	png, err := h.render(ctx, req)
	if err != nil {
		c.String(http.StatusInternalServerError, "QR generation failed: %v", err)
		return
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="qr-%s.png"`, link.ID))
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// linkRequest maps a link's logo mode to a render request: the site logo
// goes on the colored code, a custom logo on the plain one.
func (h *Handler) linkRequest(ctx context.Context, link store.Link) (qrrender.Request, error) {
	req := qrrender.Request{
		Content: link.TargetURL,
		Mode:    qrrender.ModePlain,
		SizePx:  h.cfg.Render.SizePx,
		Margin:  h.cfg.Render.Margin,
	}
	switch link.LogoMode {
	case store.LogoDefault:
		req.Mode = qrrender.ModeColored
		logo, err := h.store.GetSettingBlob(ctx, store.SiteLogoKey)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return qrrender.Request{}, err
		}
		req.Logo = logo.Data
	case store.LogoCustom:
		req.Logo = link.Logo.Data
	}
	return req, nil
}

// render consults the cache before drawing.
func (h *Handler) render(ctx context.Context, req qrrender.Request) ([]byte, error) {
	key := cache.Key(h.renderer.Fingerprint(), req)
	if png := h.cache.Get(ctx, key); png != nil {
		return png, nil
	}
	png, err := h.renderer.Render(ctx, req)
	if err != nil {
		logging.Error("QR render failed", "mode", req.Mode.String(), "size", req.SizePx, "error", err)
		return nil, err
	}
	h.cache.Set(ctx, key, png)
	return png, nil
}

func clampSize(n int) int {
	if n < minQRSize {
		return minQRSize
	}
	if n > maxQRSize {
		return maxQRSize
	}
	return n
}
