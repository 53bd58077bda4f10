package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
	"github.com/cristianadrielbraun/qrlinks/internal/store"
)

const (
	linksPerPage    = 10
	maxNameLen      = 80
	maxExportIDs    = 100
	multipartMemory = 32 << 20
)

// logoMimes lists the accepted logo extensions.
var logoMimes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

var errUnsupportedLogo = errors.New("Supported: PNG/JPG/WEBP")

type linkView struct {
	store.Link
	ShortURL string `json:"short_url"`
	QRURL    string `json:"qr_url"`
}

// ListLinks returns a page of links, most recently updated first.
func (h *Handler) ListLinks(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	p, err := h.store.ListLinks(c.Request.Context(), page, linksPerPage)
	if err != nil {
		logging.Error("List links failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list links"})
		return
	}

	base := h.baseURL(c)
	views := make([]linkView, 0, len(p.Links))
	for _, l := range p.Links {
		views = append(views, linkView{
			Link:     l,
			ShortURL: base + "/r/" + url.PathEscape(l.ID),
			QRURL:    base + "/qr/" + url.PathEscape(l.ID) + ".png",
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"base_url": base,
		"error":    c.Query("error"),
		"links":    views,
		"pagination": gin.H{
			"page":        p.Page,
			"total_pages": p.TotalPages,
			"total_count": p.TotalCount,
			"per_page":    p.PerPage,
		},
	})
}

// CreateLink stores a new link. A custom logo may be attached as logo_custom.
func (h *Handler) CreateLink(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	target, err := normalizeHTTPURL(c.PostForm("target_url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := store.ParseLogoMode(c.PostForm("logo_mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link := store.Link{
		ID:        h.newID(),
		Name:      parseName(c.PostForm("name")),
		TargetURL: target,
		LogoMode:  mode,
		CreatedAt: h.now(),
	}
	if mode == store.LogoCustom {
		blob, err := readLogo(c, "logo_custom")
		switch {
		case h.uploadTooLarge(c, err):
			return
		case noFile(err):
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		default:
			link.Logo = blob
		}
	}

	if err := h.store.CreateLink(c.Request.Context(), link); err != nil {
		logging.Error("Create link failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create link"})
		return
	}
	logging.Info("Link created", "id", link.ID, "logo_mode", string(link.LogoMode))
	link.UpdatedAt = link.CreatedAt
	c.JSON(http.StatusCreated, linkView{
		Link:     link,
		ShortURL: h.baseURL(c) + "/r/" + link.ID,
		QRURL:    h.baseURL(c) + "/qr/" + link.ID + ".png",
	})
}

// UpdateLink changes target_url and/or name, whichever fields are present.
func (h *Handler) UpdateLink(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	now := h.now()

	if raw, ok := c.GetPostForm("target_url"); ok {
		target, err := normalizeHTTPURL(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.store.UpdateTargetURL(ctx, id, target, now); err != nil {
			h.storeError(c, err)
			return
		}
	}
	if raw, ok := c.GetPostForm("name"); ok {
		if err := h.store.UpdateName(ctx, id, parseName(raw), now); err != nil {
			h.storeError(c, err)
			return
		}
	}

	link, err := h.store.GetLink(ctx, id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// DeleteLink removes a link.
func (h *Handler) DeleteLink(c *gin.Context) {
	if err := h.store.DeleteLink(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadSiteLogo replaces the site-wide logo used by default-mode links.
func (h *Handler) UploadSiteLogo(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	blob, err := readLogo(c, "logo")
	if h.uploadTooLarge(c, err) {
		return
	}
	if noFile(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.PutSettingBlob(c.Request.Context(), store.SiteLogoKey, blob); err != nil {
		logging.Error("Save site logo failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save logo"})
		return
	}
	logging.Info("Site logo updated", "bytes", len(blob.Data), "mime", blob.Mime)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type exportRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// ExportQRCodes renders several links at once and returns base64 PNGs keyed
// by link id.
func (h *Handler) ExportQRCodes(c *gin.Context) {
	var body exportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.IDs) == 0 || len(body.IDs) > maxExportIDs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must hold between 1 and " + strconv.Itoa(maxExportIDs) + " entries"})
		return
	}

	ctx := c.Request.Context()
	reqs := make([]qrrender.Request, len(body.IDs))
	for i, id := range body.IDs {
		link, err := h.store.GetLink(ctx, id)
		if err != nil {
			h.storeError(c, err)
			return
		}
		if reqs[i], err = h.linkRequest(ctx, link); err != nil {
			h.storeError(c, err)
			return
		}
	}

	start := time.Now()
	pngs, err := h.renderer.RenderBatch(ctx, reqs)
	if err != nil {
		logging.Error("QR export failed", "count", len(reqs), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "QR generation failed: " + err.Error()})
		return
	}
	logging.Info("QR export done", "count", len(reqs), "ms", time.Since(start).Milliseconds())

	images := make(map[string]string, len(pngs))
	for i, png := range pngs {
		images[body.IDs[i]] = base64.StdEncoding.EncodeToString(png)
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *Handler) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	logging.Error("Store operation failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

// parseForm reads the body before any field is accessed, since gin drops
// parse errors and an oversized upload would otherwise look like empty fields.
func (h *Handler) parseForm(c *gin.Context) bool {
	err := c.Request.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	if !h.uploadTooLarge(c, err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return false
}

// uploadTooLarge redirects to the admin page with an error flag when err
// stems from the body size limit.
func (h *Handler) uploadTooLarge(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) && !strings.Contains(err.Error(), "request body too large") {
		return false
	}
	q := url.Values{"error": {"file_too_large"}}
	if tok := c.Query("token"); tok != "" {
		q.Set("token", tok)
	}
	c.Redirect(http.StatusSeeOther, "/admin?"+q.Encode())
	return true
}

// parseName trims the display name and caps it at maxNameLen runes.
func parseName(s string) string {
	v := strings.TrimSpace(s)
	if r := []rune(v); len(r) > maxNameLen {
		v = string(r[:maxNameLen])
	}
	return v
}

func noFile(err error) bool {
	return errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart)
}

// readLogo reads an uploaded logo after checking its extension.
func readLogo(c *gin.Context, field string) (store.Blob, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return store.Blob{}, err
	}
	mime, ok := logoMimes[strings.ToLower(filepath.Ext(fh.Filename))]
	if !ok {
		return store.Blob{}, errUnsupportedLogo
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return store.Blob{}, err
	}
	return store.Blob{Data: data, Mime: mime}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
