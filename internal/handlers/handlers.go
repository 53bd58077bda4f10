package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"github.com/cristianadrielbraun/qrlinks/internal/cache"
	"github.com/cristianadrielbraun/qrlinks/internal/config"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
	"github.com/cristianadrielbraun/qrlinks/internal/store"
)

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	store    store.Store
	renderer *qrrender.Renderer
	cache    *cache.RenderCache
	cfg      config.Config

	now   func() time.Time
	newID func() string
}

// New returns a Handler. cache may be nil.
func New(st store.Store, r *qrrender.Renderer, c *cache.RenderCache, cfg config.Config) *Handler {
	return &Handler{
		store:    st,
		renderer: r,
		cache:    c,
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return xid.New().String() },
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/admin") })
	r.GET("/healthz", h.Health)

	r.GET("/qr", h.QRCodeHandler)
	r.GET("/qr/:file", h.LinkQRHandler)
	r.GET("/r/:id", h.RedirectHandler)

	admin := r.Group("/admin", h.RequireAdmin(), h.LimitUpload())
	{
		admin.GET("", h.ListLinks)
		admin.POST("/create", h.CreateLink)
		admin.POST("/:id/update", h.UpdateLink)
		admin.POST("/:id/delete", h.DeleteLink)
		admin.POST("/logo", h.UploadSiteLogo)
		admin.POST("/export", h.ExportQRCodes)
	}
}

// Health reports liveness of the process and its cache.
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if err := h.cache.Ping(c.Request.Context()); err != nil {
		status["cache"] = err.Error()
	}
	c.JSON(http.StatusOK, status)
}

// baseURL prefers the configured public URL and otherwise derives one from
// the request, honouring X-Forwarded-Proto from a proxy.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.cfg.Server.BaseURL != "" {
		return h.cfg.Server.BaseURL
	}
	scheme := "http"
	if xf := c.Request.Header.Get("X-Forwarded-Proto"); xf != "" {
		scheme = strings.TrimSpace(strings.Split(xf, ",")[0])
	} else if c.Request.TLS != nil {
		scheme = "https"
	}
	return strings.TrimRight(scheme+"://"+c.Request.Host, "/")
}
