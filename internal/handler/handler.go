package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"libtrack/internal/auth"
	"libtrack/internal/branch"
	"libtrack/internal/cloudinary"
	"libtrack/internal/config"
	"libtrack/internal/gatelog"
	"libtrack/internal/kiosk"
	"libtrack/internal/queue"
	"libtrack/internal/student"
	"libtrack/internal/visionclient"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	cfg      config.App
	students *student.Service
	branches branch.Registry
	scans    *gatelog.Service
	kiosks   kiosk.Store
	vision   *visionclient.Client
	cloud    *cloudinary.Client // nil if Cloudinary not configured
	queue    queue.Queue
}

// New creates a handler.
func New(cfg config.App, students *student.Service, branches branch.Registry, scans *gatelog.Service,
	kiosks kiosk.Store, vision *visionclient.Client, cloud *cloudinary.Client, q queue.Queue) *Handler {
	return &Handler{
		cfg:      cfg,
		students: students,
		branches: branches,
		scans:    scans,
		kiosks:   kiosks,
		vision:   vision,
		cloud:    cloud,
		queue:    q,
	}
}

// ---------- Auth ----------

// RegisterKiosk registers a scan station and issues its token pair.
func (h *Handler) RegisterKiosk(c *gin.Context) {
	var req struct {
		KioskID string `json:"kiosk_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.kiosks.Register(c.Request.Context(), req.KioskID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := auth.Issue(req.KioskID, auth.RoleKiosk, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	_ = h.kiosks.SaveRefreshToken(c.Request.Context(), req.KioskID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// AdminLogin checks the configured admin credentials and issues an admin
// token pair.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username != h.cfg.AdminUser || req.Password != h.cfg.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tokens, err := auth.Issue(req.Username, auth.RoleAdmin, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Scans ----------

type scanRequest struct {
	StudentID string `json:"student_id"`
	Image     string `json:"image"` // base64, optional
}

// Scan records the next Entry/Exit event for a student. The kiosk sends
// either a barcode-read student_id, or a captured card image that the
// vision service turns into an id candidate.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.StudentID == "" && req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id or image required"})
		return
	}

	var capture []byte
	if req.Image != "" {
		var err error
		capture, err = decodeImage(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}
	}

	id := req.StudentID
	if id == "" {
		detected, err := h.vision.Detect(c.Request.Context(), capture)
		if err != nil {
			log.Printf("card detection failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "card detection failed"})
			return
		}
		if !detected.IsIDCard {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no ID card detected, retry the scan or enter the id manually"})
			return
		}
		fields, err := h.vision.Extract(c.Request.Context(), capture)
		if err != nil {
			log.Printf("field extraction failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "field extraction failed"})
			return
		}
		if fields.IDNumber == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not read an id from the card, retry or enter it manually"})
			return
		}
		id = fields.IDNumber
	}

	res, err := h.scans.Scan(c.Request.Context(), id, capture)
	if err != nil {
		h.scanError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"log":         res.Log,
		"image_match": res.Verdict.String(),
	})
}

func (h *Handler) scanError(c *gin.Context, err error) {
	var nf student.NotFoundError
	var rl gatelog.RateLimitedError
	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error(), "student_id": nf.ID})
	case errors.As(err, &rl):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          rl.Error(),
			"wait_remaining": rl.WaitRemaining.Seconds(),
		})
	case errors.Is(err, gatelog.ErrScanInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record the scan, please re-submit"})
	}
}

// ListLogs returns gate events, newest first.
func (h *Handler) ListLogs(c *gin.Context) {
	f := gatelog.Filter{
		StudentID: c.Query("student_id"),
		Branch:    c.Query("branch"),
		Type:      c.Query("type"),
		Limit:     50,
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	logs, err := h.scans.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []gatelog.EntryLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// ---------- Students ----------

type studentRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Branch      string `json:"branch" binding:"required"`
	EnrollNo    string `json:"enroll_no"`
	YearOfStudy string `json:"year_of_study"`
	CardImage   string `json:"card_image"` // base64, optional
	CardURL     string `json:"card_url"`   // already-uploaded URL, optional
}

// CreateStudent registers a student, optionally uploading their card photo
// and queueing it for verification.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cardURL, ok := h.resolveCardURL(c, req)
	if !ok {
		return
	}

	st, err := h.students.Register(c.Request.Context(), student.Student{
		ID:             req.ID,
		Name:           req.Name,
		Branch:         req.Branch,
		EnrollNo:       req.EnrollNo,
		YearOfStudy:    req.YearOfStudy,
		IDCardImageURL: cardURL,
	})
	if err != nil {
		if errors.Is(err, student.ErrDuplicateID) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.queueCardVerification(c, st)
	c.JSON(http.StatusCreated, st)
}

// UpdateStudent edits a record; changing the id is a rename and must not
// collide with another student.
func (h *Handler) UpdateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cardURL, ok := h.resolveCardURL(c, req)
	if !ok {
		return
	}

	st, err := h.students.Update(c.Request.Context(), c.Param("id"), student.Student{
		ID:             req.ID,
		Name:           req.Name,
		Branch:         req.Branch,
		EnrollNo:       req.EnrollNo,
		YearOfStudy:    req.YearOfStudy,
		IDCardImageURL: cardURL,
	})
	if err != nil {
		h.studentError(c, err)
		return
	}

	if st.CardStatus == student.CardPending {
		h.queueCardVerification(c, st)
	}
	c.JSON(http.StatusOK, st)
}

// GetStudent returns one student.
func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.students.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.studentError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListStudents returns all students.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, students)
}

// DeleteStudent removes a student. Their logs keep the snapshot fields.
func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.studentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) studentError(c *gin.Context, err error) {
	var nf student.NotFoundError
	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.Is(err, student.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *Handler) resolveCardURL(c *gin.Context, req studentRequest) (string, bool) {
	if req.CardImage == "" {
		return req.CardURL, true
	}
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return "", false
	}
	result, err := h.cloud.UploadBase64(req.CardImage)
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "card image upload failed"})
		return "", false
	}
	return result.SecureURL, true
}

func (h *Handler) queueCardVerification(c *gin.Context, st student.Student) {
	if h.queue == nil || st.IDCardImageURL == "" {
		return
	}
	msg := queue.Message{Type: queue.TypeVerifyCard, Body: st.ID}
	if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// ---------- Branches ----------

// ListBranches returns the registry names.
func (h *Handler) ListBranches(c *gin.Context) {
	names, err := h.branches.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"branches": names})
}

// AddBranch registers a branch name.
func (h *Handler) AddBranch(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.branches.Add(c.Request.Context(), req.Name); err != nil {
		if errors.Is(err, branch.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

// DeleteBranch removes a branch name. Students assigned to it keep the
// value as free text.
func (h *Handler) DeleteBranch(c *gin.Context) {
	if err := h.branches.Remove(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Upload ----------

// Upload stores an image and returns its public URL, for clients that
// upload the card photo before registering.
func (h *Handler) Upload(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	var result *cloudinary.UploadResult
	var err error
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err = h.cloud.UploadBytes(data, header.Filename)
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		result, err = h.cloud.UploadBase64(body.Data)
	}

	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       result.SecureURL,
		"public_id": result.PublicID,
		"bytes":     result.Bytes,
	})
}

func decodeImage(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}
