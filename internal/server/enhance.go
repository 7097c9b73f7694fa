package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	// Decoders for the accepted upload formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luminascale/enhance-api/internal/gate"
	"github.com/luminascale/enhance-api/internal/identity"
	"github.com/luminascale/enhance-api/internal/models"
	"github.com/luminascale/enhance-api/internal/quota"
	"github.com/luminascale/enhance-api/internal/sizing"
)

// enhanceImage is the admission pipeline and orchestrator for POST /enhance.
//
// Stages run in fixed order, each failure short-circuiting: credential ->
// scale -> input gate -> quota -> decode -> pre-shape -> enhance ->
// post-shape. The quota increment happens exactly once per request that
// reaches it; failures after admission are not refunded.
func (s *Server) enhanceImage(c *gin.Context) {
	clientIP := identity.ClientIP(c.Request)

	// Authentication is optional: without a key the caller burns the IP
	// budget instead. A presented key must be valid, though.
	authenticated := false
	if apiKey := c.GetHeader(models.HeaderAPIKey); apiKey != "" {
		if err := s.validator.Validate(apiKey); err != nil {
			s.logger.Warn("invalid API key attempt",
				zap.String("key_prefix", maskAPIKey(apiKey)),
				zap.String("client_ip", clientIP))
			c.Header("WWW-Authenticate", "Bearer")
			s.reject(c, 401, err.Error())
			return
		}
		authenticated = true
	}

	scale, err := strconv.Atoi(c.DefaultQuery("scale", "2"))
	if err != nil || !sizing.ValidScale(scale) {
		s.reject(c, 400, "Scale must be 2 or 4")
		return
	}
	version := c.DefaultQuery("version", s.cfg.Enhance.DefaultVersion)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		s.reject(c, 400, "Invalid file")
		return
	}
	defer file.Close()

	declaredType := header.Header.Get("Content-Type")
	if err := s.gate.Check(header.Size, declaredType); err != nil {
		s.rejectUpload(c, err, header.Size, declaredType)
		return
	}

	var id identity.Identity
	if authenticated {
		id = identity.ForAPIKey(s.validator.KeyName())
	} else {
		id = identity.ForIP(c.Request)
	}

	decision, err := s.ledger.CheckAndIncrement(c.Request.Context(), id)
	if err != nil {
		// Only reachable with fail_open disabled.
		s.reject(c, 503, "Quota service unavailable, try again later")
		return
	}
	s.setQuotaHeaders(c, decision, authenticated)

	if !decision.Allowed {
		s.logger.Warn("quota exceeded",
			zap.String("namespace", string(id.Namespace)),
			zap.String("identity", id.Value),
			zap.Int64("used", decision.Used),
			zap.Int64("limit", decision.Limit))
		c.Header("Retry-After", "86400")
		s.reject(c, 429, fmt.Sprintf("Daily quota exceeded (%d/%d). Resets at %s",
			decision.Used, decision.Limit, decision.ResetAt))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.reject(c, 400, "Invalid file")
		return
	}
	s.tally.bytesIn.Add(int64(len(data)))

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.reject(c, 400, "Invalid or corrupted image")
		return
	}

	pre, err := s.policy.PreShape(img)
	if err != nil {
		s.logger.Warn("rejecting degenerate image",
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()),
			zap.Error(err))
		s.reject(c, 400, "Image dimensions not supported")
		return
	}
	preW, preH := pre.Bounds().Dx(), pre.Bounds().Dy()

	s.logger.Info("processing image",
		zap.String("request_id", c.GetString("request_id")),
		zap.Int("width", preW),
		zap.Int("height", preH),
		zap.Int("scale", scale),
		zap.String("version", version),
		zap.Bool("authenticated", authenticated))

	restored, err := s.enhancer.Enhance(c.Request.Context(), pre, version)
	if err != nil {
		// Full detail stays in the log; the caller gets a generic message.
		s.logger.Error("enhancement failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		s.reject(c, 500, "Image processing failed. Please try again.")
		return
	}

	out := sizing.PostShape(restored, preW, preH, scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		s.logger.Error("output encoding failed", zap.Error(err))
		s.reject(c, 500, "Image processing failed. Please try again.")
		return
	}

	s.tally.served.Add(1)
	s.tally.bytesOut.Add(int64(buf.Len()))

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(200, "image/png", buf.Bytes())
}

// reject writes the uniform error body and counts the rejection.
func (s *Server) reject(c *gin.Context, status int, detail string) {
	s.tally.rejected.Add(1)
	c.AbortWithStatusJSON(status, models.ErrorResponse{Detail: detail})
}

// rejectUpload maps input-gate failures onto their status codes.
func (s *Server) rejectUpload(c *gin.Context, err error, size int64, declaredType string) {
	switch {
	case errors.Is(err, gate.ErrTooLarge):
		s.logger.Warn("file too large", zap.Int64("size", size))
		s.reject(c, 413, fmt.Sprintf("File too large (max %s)", formatSize(s.gate.MaxBytes())))
	case errors.Is(err, gate.ErrTooSmall):
		s.reject(c, 400, "File too small")
	case errors.Is(err, gate.ErrUnsupportedType):
		s.logger.Warn("unsupported format", zap.String("content_type", declaredType))
		s.reject(c, 415, fmt.Sprintf("Unsupported format: %s. Allowed: JPG, PNG, WebP, TIFF", declaredType))
	default:
		s.reject(c, 400, "Invalid file")
	}
}

func (s *Server) setQuotaHeaders(c *gin.Context, d quota.Decision, authenticated bool) {
	c.Header(models.HeaderQuotaUsed, strconv.FormatInt(d.Used, 10))
	c.Header(models.HeaderQuotaLimit, strconv.FormatInt(d.Limit, 10))
	c.Header(models.HeaderQuotaReset, d.ResetAt)
	c.Header(models.HeaderAuthenticated, strconv.FormatBool(authenticated))
}

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f%s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1fGB", size)
}
