package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/branch"
	"libtrack/internal/config"
	"libtrack/internal/gatelog"
	"libtrack/internal/kiosk"
	"libtrack/internal/queue"
	"libtrack/internal/student"
	"libtrack/internal/visionclient"
)

func newTestRouter(t *testing.T) (*gin.Engine, *student.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.App{
		JWTIssuer:       "libtrack-test",
		JWTSigningKey:   "test-secret",
		AccessTTL:       time.Minute,
		RefreshTTL:      time.Hour,
		AdminUser:       "admin",
		AdminPassword:   "admin",
		MinScanInterval: 10 * time.Second,
	}

	students := student.NewService(student.NewMemory())
	scans := gatelog.NewService(students, gatelog.NewMemory(), nil, cfg.MinScanInterval)
	h := New(cfg, students, branch.NewMemory("Computer"), scans, kiosk.NewMemory(),
		visionclient.New("", true), nil, queue.NewInMemory(8))

	r := gin.New()
	r.POST("/v1/kiosks/register", h.RegisterKiosk)
	r.POST("/v1/auth/login", h.AdminLogin)
	r.POST("/v1/scans", h.Scan)
	r.GET("/v1/logs", h.ListLogs)
	r.GET("/v1/students", h.ListStudents)
	r.POST("/v1/students", h.CreateStudent)
	r.GET("/v1/students/:id", h.GetStudent)
	r.PUT("/v1/students/:id", h.UpdateStudent)
	r.DELETE("/v1/students/:id", h.DeleteStudent)
	r.GET("/v1/branches", h.ListBranches)
	r.POST("/v1/branches", h.AddBranch)
	r.DELETE("/v1/branches/:name", h.DeleteBranch)
	return r, students
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScanEndpoint(t *testing.T) {
	r, students := newTestRouter(t)
	_, err := students.Register(context.Background(), student.Student{ID: "CS-101", Name: "Asha", Branch: student.BranchStaff})
	require.NoError(t, err)

	t.Run("unknown student is 404", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/scans", gin.H{"student_id": "nope"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("first scan records an Entry", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/scans", gin.H{"student_id": "cs-101"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Log        gatelog.EntryLog `json:"log"`
			ImageMatch string           `json:"image_match"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, gatelog.EventEntry, resp.Log.Type)
		assert.Equal(t, "inconclusive", resp.ImageMatch)
	})

	t.Run("immediate re-scan is rate limited", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/scans", gin.H{"student_id": "CS-101"})
		require.Equal(t, http.StatusTooManyRequests, w.Code)

		var resp struct {
			WaitRemaining float64 `json:"wait_remaining"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Greater(t, resp.WaitRemaining, 0.0)
	})

	t.Run("missing id and image is 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/scans", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStudentEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("create", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/students", gin.H{
			"id": "CS-101", "name": "Asha", "branch": "Computer",
			"enroll_no": "EN-1", "year_of_study": "FY",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/students", gin.H{
			"id": "cs-101", "name": "Other", "branch": "Computer",
			"enroll_no": "EN-2", "year_of_study": "SY",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid year rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/v1/students", gin.H{
			"id": "CS-102", "name": "Ravi", "branch": "Computer",
			"enroll_no": "EN-3", "year_of_study": "XX",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get and delete", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/v1/students/CS-101", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, r, http.MethodDelete, "/v1/students/CS-101", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, r, http.MethodGet, "/v1/students/CS-101", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBranchEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/branches", gin.H{"name": "Mechanical"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/branches", gin.H{"name": "Mechanical"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/branches/Mechanical", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/branches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Branches []string `json:"branches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotContains(t, resp.Branches, "Mechanical")
}

func TestAdminLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", gin.H{"username": "admin", "password": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKioskRegister(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/kiosks/register", gin.H{"kiosk_id": "gate-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}
