package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/view"
)

const fieldNID = "nid"

type handlers struct {
	recorder     *view.Recorder
	gate         Gate
	maxBodyBytes int64
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// statistics counts one view of the posted nid.
func (h *handlers) statistics(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	// An unreadable body is passed on as an empty id, so that a disabled
	// feature still answers 200 regardless of input.
	raw, err := readNID(c)
	if err != nil {
		_ = c.Error(err)
	}

	err = h.recorder.RecordView(c.Request.Context(), raw, h.gate.Enabled())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, view.ErrInvalidInput):
		jsonError(c, http.StatusBadRequest, "invalid nid")
	case errors.Is(err, counter.ErrUnavailable):
		_ = c.Error(err)
		jsonError(c, http.StatusServiceUnavailable, "service unavailable")
	default:
		_ = c.Error(err)
		jsonError(c, http.StatusInternalServerError, "internal error")
	}
}

// readNID takes nid from a JSON body ({"nid": 7} or {"nid": "7"}) or from
// form fields otherwise.
func readNID(c *gin.Context) (string, error) {
	if c.ContentType() != gin.MIMEJSON {
		return c.PostForm(fieldNID), nil
	}

	var ev view.Event
	if err := json.NewDecoder(c.Request.Body).Decode(&ev); err != nil {
		return "", err
	}
	return ev.NID, nil
}

func jsonError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
