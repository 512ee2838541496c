package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
	"smart_irrigation/internal/session"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

const (
	msgLoadingAuth  = "Loading authentication..."
	msgUnauthorized = "unauthorized"
)

// Session is the part of the session manager the web UI drives.
type Session interface {
	State() session.AuthState
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
}

// Handler serves the dashboard web UI.
type Handler struct {
	sess Session
	rt   *Runtime
	log  *logger.Logger
	tmpl *template.Template
}

func NewHandler(sess Session, rt *Runtime, log *logger.Logger) *Handler {
	tmpl := template.Must(template.New("").ParseFS(webFS, "web/templates/*.html"))
	return &Handler{sess: sess, rt: rt, log: logger.OrNop(log), tmpl: tmpl}
}

// InitRoutes builds the gin router for the dashboard.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(h.tmpl)

	static, _ := fs.Sub(webFS, "web/static")
	router.StaticFS("/static", http.FS(static))

	router.GET("/login", h.loginPage)
	router.POST("/login", h.login)
	router.GET("/logout", h.logout)
	router.POST("/logout", h.logout)

	protected := router.Group("/", h.requireSession)
	{
		protected.GET("/", h.dashboardPage)
		protected.GET("/about", h.aboutPage)
		protected.GET("/api/view", h.view)
		protected.POST("/api/pump", h.pump)
		protected.GET("/ws", h.wsConnect)
	}

	router.NoRoute(func(c *gin.Context) {
		if h.sess.State().IsAuthenticated {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.Redirect(http.StatusSeeOther, "/login")
	})
	return router
}

// requireSession lets a request through only with an authenticated session.
// While the initial check is still running it answers 503.
func (h *Handler) requireSession(c *gin.Context) {
	st := h.sess.State()
	switch {
	case st.Loading:
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": msgLoadingAuth})
			return
		}
		c.Header("Retry-After", "1")
		c.String(http.StatusServiceUnavailable, msgLoadingAuth)
		c.Abort()
	case !st.IsAuthenticated:
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUnauthorized})
			return
		}
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
	default:
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	p := c.Request.URL.Path
	return strings.HasPrefix(p, "/api/") || p == "/ws"
}

type pageData struct {
	Title         string
	Authenticated bool
	Error         string
	Email         string
	View          View
}

func (h *Handler) loginPage(c *gin.Context) {
	if h.sess.State().IsAuthenticated {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", pageData{Title: "Login"})
}

type loginForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var in loginForm
	if err := c.ShouldBind(&in); err != nil || in.Email == "" || in.Password == "" {
		h.loginFailed(c, http.StatusBadRequest, in.Email, "Email and password are required")
		return
	}

	if err := h.sess.Login(c.Request.Context(), in.Email, in.Password); err != nil {
		msg := err.Error()
		var ae *apperr.AuthError
		if errors.As(err, &ae) {
			msg = ae.Message
		}
		h.log.Infow("dashboard_login_failed", "email", in.Email, "err", err)
		h.loginFailed(c, http.StatusUnauthorized, in.Email, msg)
		return
	}

	if c.ContentType() == gin.MIMEJSON {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) loginFailed(c *gin.Context, code int, email, msg string) {
	if c.ContentType() == gin.MIMEJSON {
		c.JSON(code, gin.H{"success": false, "message": msg})
		return
	}
	c.HTML(code, "login.html", pageData{Title: "Login", Error: msg, Email: email})
}

func (h *Handler) logout(c *gin.Context) {
	h.sess.Logout(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) dashboardPage(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", pageData{
		Title:         "Dashboard",
		Authenticated: true,
		View:          h.rt.View(),
	})
}

func (h *Handler) aboutPage(c *gin.Context) {
	c.HTML(http.StatusOK, "about.html", pageData{Title: "About Us", Authenticated: true})
}

func (h *Handler) view(c *gin.Context) {
	c.JSON(http.StatusOK, h.rt.View())
}

type pumpRequest struct {
	Action models.CommandAction `json:"action" binding:"required"`
}

func (h *Handler) pump(c *gin.Context) {
	var in pumpRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body: " + err.Error()})
		return
	}

	res, err := h.rt.SendCommand(c.Request.Context(), in.Action)
	if err != nil {
		c.JSON(commandErrorStatus(err), gin.H{"success": false, "message": h.rt.View().Notice, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "message": res.Message, "view": h.rt.View()})
}

func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrCommandUnavailable):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}
