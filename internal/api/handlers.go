package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/share"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/surface"
	"github.com/ivlev/eventframe/internal/system"
	"github.com/ivlev/eventframe/internal/template"
)

type formatInfo struct {
	Format template.Format `json:"format"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
}

type templateInfo struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Format         template.Format    `json:"format"`
	Width          int                `json:"width"`
	Height         int                `json:"height"`
	Frame          geometry.FrameRect `json:"frame"`
	Caption        string             `json:"caption,omitempty"`
	ShareURL       string             `json:"share_url,omitempty"`
	HasPlaceholder bool               `json:"has_placeholder"`
}

func describe(d *template.Definition) templateInfo {
	c := d.Canvas()
	return templateInfo{
		ID:             d.ID,
		Name:           d.Name,
		Format:         d.Format,
		Width:          c.Width,
		Height:         c.Height,
		Frame:          d.Frame(),
		Caption:        d.Caption,
		ShareURL:       d.ShareURL,
		HasPlaceholder: d.HasPlaceholder(),
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) formats(c *gin.Context) {
	var out []formatInfo
	for _, f := range template.Formats() {
		d, _ := f.Dimensions()
		out = append(out, formatInfo{Format: f, Width: d.Width, Height: d.Height})
	}
	c.JSON(http.StatusOK, gin.H{"formats": out})
}

func (s *Server) listTemplates(c *gin.Context) {
	defs := s.store.List()
	out := make([]templateInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, describe(d))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "templates": out})
}

func (s *Server) reloadTemplates(c *gin.Context) {
	n, err := s.Reload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) getTemplate(c *gin.Context) {
	def, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, describe(def))
}

// composite renders an uploaded photo into a template. Form fields:
// photo (file), offset_x, offset_y, scale and encoding. Without scale the
// photo is cover-fitted.
func (s *Server) composite(c *gin.Context) {
	def, ok := s.lookup(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with a photo file is required"})
		return
	}

	enc, err := export.ParseEncoding(c.PostForm("encoding"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	photo, err := s.loader.LoadImage(ctx, source.Bytes{Label: fh.Filename, Data: data})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	art, err := s.artworkFor(ctx, def)
	if err != nil {
		s.logger.Error("template artwork unavailable", "template", def.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	pos, err := s.position(c, def, photo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scene := compositor.Scene{
		Photo:    photo,
		Template: art,
		Frame:    def.Frame(),
		Position: pos,
		Canvas:   def.Canvas(),
		Anchor:   compositor.Centered,
	}
	file, name, err := s.exporter.ExportFile(scene, def.Name, enc)
	if err != nil {
		s.fail(c, def, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, enc.ContentType(), file)
}

// position reads the requested placement, starting from cover fit and
// applying the same bounds as the interactive editor.
func (s *Server) position(c *gin.Context, def *template.Definition, photo *source.Bitmap) (geometry.Position, error) {
	frame := geometry.FrameToAbsolute(def.Frame(), def.Canvas())
	pos := geometry.FitPosition(photo.Width(), photo.Height(), frame)
	fit := pos.Scale

	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"offset_x", &pos.OffsetX},
		{"offset_y", &pos.OffsetY},
		{"scale", &pos.Scale},
	} {
		v := c.PostForm(field.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !geometry.Finite(f) {
			return pos, fmt.Errorf("invalid %s: %q", field.name, v)
		}
		*field.dst = f
	}

	pos.Scale = geometry.ClampScale(pos.Scale, fit, s.opts.MaxZoom)
	if s.opts.ClampPan {
		pos = geometry.ClampOffset(pos, photo.Width(), photo.Height(), frame)
	}
	return pos, nil
}

func (s *Server) fail(c *gin.Context, def *template.Definition, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, surface.ErrTainted):
		status = http.StatusConflict
	case errors.Is(err, system.ErrInsufficientMemory):
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("export failed", "template", def.ID, "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// qr returns the poster QR for the template's share url.
func (s *Server) qr(c *gin.Context) {
	def, ok := s.lookup(c)
	if !ok {
		return
	}
	if def.ShareURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "template has no share url"})
		return
	}
	size := share.DefaultQRSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 4096 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 4096"})
			return
		}
		size = n
	}
	b, err := share.EventQR(def.ShareURL, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func (s *Server) lookup(c *gin.Context) (*template.Definition, bool) {
	def, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return def, true
}
