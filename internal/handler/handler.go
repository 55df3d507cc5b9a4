package handler

import (
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pickup/internal/auth"
	"pickup/internal/config"
	"pickup/internal/pickup"
	"pickup/internal/queue"
	"pickup/internal/snapshot"
)

// Handler bundles the dependencies for the HTTP endpoints.
type Handler struct {
	svc   *pickup.Service
	queue queue.Queue
	snaps *snapshot.Client // nil when Cloudinary is not configured
	cfg   config.App
}

// New creates a handler.
func New(svc *pickup.Service, q queue.Queue, snaps *snapshot.Client, cfg config.App) *Handler {
	return &Handler{svc: svc, queue: q, snaps: snaps, cfg: cfg}
}

// writeError maps the error taxonomy to HTTP responses. Internal causes are
// logged server-side and never echoed to the client.
func writeError(c *gin.Context, err error) {
	msg := pickup.MessageOf(err)
	switch pickup.KindOf(err) {
	case pickup.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
	case pickup.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"message": msg})
	case pickup.KindAuth:
		c.JSON(http.StatusUnauthorized, gin.H{"message": msg})
	default:
		log.Printf("internal error on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

// ---------- Register ----------

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req pickup.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.svc.Register(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}
	registrationsTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

// ---------- Login ----------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login. On success it returns the sanitized profile
// and a session token for the protected endpoints.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	profile, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		writeError(c, err)
		return
	}

	token, err := auth.Issue(profile.UserID, string(profile.Role), h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		writeError(c, pickup.Internal(err))
		return
	}

	loginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token.Value,
		"user":    profile,
	})
}

// ---------- Queue ----------

// Queue handles GET /api/queue and returns the full ordered arrival list.
func (h *Handler) Queue(c *gin.Context) {
	entries, err := h.svc.Queue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ---------- Cameras ----------

type cameraRegisterRequest struct {
	CameraID string `json:"camera_id" binding:"required"`
	Location string `json:"location"`
}

// RegisterCamera handles POST /api/cameras/register: idempotent upsert plus
// a camera-scoped token for the ingest endpoints.
func (h *Handler) RegisterCamera(c *gin.Context) {
	var req cameraRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "camera_id required"})
		return
	}

	if err := h.svc.RegisterCamera(c.Request.Context(), req.CameraID, req.Location); err != nil {
		writeError(c, err)
		return
	}

	token, err := auth.Issue(req.CameraID, auth.RoleCamera, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.CameraTokenTTL)
	if err != nil {
		writeError(c, pickup.Internal(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token.Value,
		"expires_at": token.Expires.Unix(),
	})
}

// ---------- Snapshots ----------

// UploadSnapshot handles POST /api/snapshots: a base64 body or multipart
// file is stored and the public URL returned for use in a detection.
func (h *Handler) UploadSnapshot(c *gin.Context) {
	if h.snaps == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "snapshot storage not configured"})
		return
	}

	var result *snapshot.UploadResult
	var err error

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "read file failed"})
			return
		}
		result, err = h.snaps.UploadBytes(data, header.Filename)
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		result, err = h.snaps.UploadBase64(body.Data)
	}

	if err != nil {
		log.Printf("snapshot upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "snapshot upload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       result.SecureURL,
		"public_id": result.PublicID,
		"bytes":     result.Bytes,
	})
}

// ---------- Detections ----------

type detectionRequest struct {
	Plate       string     `json:"plate" binding:"required"`
	DetectedAt  *time.Time `json:"detected_at"`
	SnapshotURL string     `json:"snapshot_url"`
}

// IngestDetection handles POST /api/detections from an authenticated camera.
// The event is published to the queue; the worker persists it.
func (h *Handler) IngestDetection(c *gin.Context) {
	var req detectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "plate required"})
		return
	}

	plate := pickup.NormalizePlate(req.Plate)
	if plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "plate required"})
		return
	}

	claimsAny, _ := c.Get(auth.ContextClaims)
	claims, _ := claimsAny.(auth.Claims)

	detectedAt := time.Now().UTC()
	if req.DetectedAt != nil {
		detectedAt = req.DetectedAt.UTC()
	}

	d := queue.Detection{
		ID:          uuid.NewString(),
		CameraID:    claims.Subject,
		Plate:       plate,
		DetectedAt:  detectedAt,
		SnapshotURL: req.SnapshotURL,
	}
	if err := h.queue.Publish(c.Request.Context(), d); err != nil {
		writeError(c, pickup.Internal(err))
		return
	}

	detectionsTotal.Inc()
	c.JSON(http.StatusAccepted, gin.H{"id": d.ID, "detected_at": d.DetectedAt})
}
