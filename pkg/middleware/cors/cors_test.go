package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func preflight(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, "/timetables", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSOriginMatching(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New([]string{"https://admin.sma.example/", "https://*.sch.id"}))
	router.GET("/timetables", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]bool{
		"https://admin.sma.example": true,
		"https://sman1.sch.id":      true,
		"https://a.b.sch.id":        true,
		"http://sman1.sch.id":       false,
		"https://sch.id":            false,
		"https://evil-sch.id":       false,
		"https://other.sma.example": false,
	}
	for origin, allowed := range cases {
		w := preflight(router, http.MethodGet, origin)
		if allowed {
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"), origin)
		} else {
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	}
}

func TestCORSPreflightAndOpenPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(nil))
	router.GET("/timetables", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := preflight(router, http.MethodOptions, "https://anywhere.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	w = preflight(router, http.MethodGet, "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
