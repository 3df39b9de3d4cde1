package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/flor3z/redeem-bot/internal/redeem"
	"github.com/gin-gonic/gin"
)

// Server is the web-form intake surface. It feeds submissions into the same
// lifecycle service as the slash command, with the client IP as the
// throttling identity.
type Server struct {
	service *redeem.Service
	httpSrv *http.Server
}

// NewServer builds the gin router and wraps it in an http.Server on addr.
func NewServer(service *redeem.Service, addr string) *Server {
	s := &Server{service: service}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.New("").Parse(pageTemplates)))

	router.GET("/", s.showForm)
	router.POST("/redeem", s.handleSubmit)
	router.GET("/requests/:id", s.showRequest)

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until Stop is called. Blocks; run it on its own goroutine.
func (s *Server) Start() error {
	slog.Info("Starting web intake", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) showForm(c *gin.Context) {
	// Storefronts link here with ?order_id=... so the request can be tied
	// back to the purchase.
	c.HTML(http.StatusOK, "form", gin.H{
		"Name":    "",
		"Key":     "",
		"Invite":  "",
		"OrderID": c.Query("order_id"),
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	draft := redeem.Draft{
		Name:           c.PostForm("name"),
		RedeemKey:      c.PostForm("key"),
		InviteLink:     c.PostForm("invite"),
		OrderID:        c.PostForm("order_id"),
		Origin:         c.ClientIP(),
		SubmitterAgent: c.Request.UserAgent(),
	}

	req, err := s.service.Submit(c.Request.Context(), draft)
	if err != nil {
		status, messages := submitFailure(err)
		c.HTML(status, "form", gin.H{
			"Errors":  messages,
			"Name":    draft.Name,
			"Key":     draft.RedeemKey,
			"Invite":  draft.InviteLink,
			"OrderID": draft.OrderID,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/requests/%d", req.ID))
}

// submitFailure maps a submission error to an HTTP status and the messages
// shown above the form.
func submitFailure(err error) (int, []string) {
	var verr *redeem.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Violations
	case errors.Is(err, redeem.ErrDuplicateKey):
		return http.StatusConflict, []string{"That redeem key has already been used."}
	case errors.Is(err, redeem.ErrRateLimited):
		return http.StatusTooManyRequests, []string{"Too many requests from your address. Try again later."}
	default:
		slog.Error("Failed to submit redeem request", "error", err)
		return http.StatusInternalServerError, []string{"Something went wrong. Please try again."}
	}
}

func (s *Server) showRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.HTML(http.StatusNotFound, "notfound", gin.H{})
		return
	}

	req, err := s.service.Get(c.Request.Context(), id)
	if errors.Is(err, redeem.ErrNotFound) {
		c.HTML(http.StatusNotFound, "notfound", gin.H{})
		return
	}
	if err != nil {
		slog.Error("Failed to load request", "id", id, "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	c.HTML(http.StatusOK, "status", gin.H{
		"ID":           req.ID,
		"Name":         req.Name,
		"Status":       string(req.Status),
		"SubmittedAt":  req.SubmittedAt.Format(time.RFC1123),
		"ContactEmail": req.ContactEmail,
	})
}
