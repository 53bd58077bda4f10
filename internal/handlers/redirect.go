package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/store"
)

// RedirectHandler sends the visitor to the link's current target.
func (h *Handler) RedirectHandler(c *gin.Context) {
	id := c.Param("id")
	link, err := h.store.GetLink(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		logging.Error("Redirect lookup failed", "id", id, "error", err)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	c.Redirect(http.StatusFound, link.TargetURL)
}
