package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gigflow/application"
	"gigflow/domain"
	"gigflow/infrastructure"
)

type Dependencies struct {
	Jobs    *application.JobRegistry
	Bids    *application.BidLedger
	Hiring  *application.HiringCoordinator
	Hub     *infrastructure.Hub
	Auth    *Authenticator
	Log     *zap.SugaredLogger
	Timeout time.Duration
}

type HTTPHandler struct {
	jobs    *application.JobRegistry
	bids    *application.BidLedger
	hiring  *application.HiringCoordinator
	hub     *infrastructure.Hub
	log     *zap.SugaredLogger
	timeout time.Duration
}

func NewHTTPHandler(router *gin.Engine, deps Dependencies) {
	h := &HTTPHandler{
		jobs:    deps.Jobs,
		bids:    deps.Bids,
		hiring:  deps.Hiring,
		hub:     deps.Hub,
		log:     deps.Log,
		timeout: deps.Timeout,
	}
	auth := deps.Auth.Middleware()

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", auth, h.Notifications)

	jobs := router.Group("/api/jobs")
	jobs.GET("", h.ListOpenJobs)
	jobs.POST("", auth, h.CreateJob)
	jobs.GET("/mine", auth, h.ListMyJobs)
	jobs.GET("/:id", h.GetJob)
	jobs.PUT("/:id", auth, h.UpdateJob)
	jobs.DELETE("/:id", auth, h.DeleteJob)

	bids := router.Group("/api/bids", auth)
	bids.POST("", h.SubmitBid)
	bids.GET("/mine", h.ListMyBids)
	bids.GET("/job/:jobId", h.ListBidsForJob)
	bids.PUT("/:bidId", h.UpdateBid)
	bids.DELETE("/:bidId", h.WithdrawBid)
	bids.PATCH("/:bidId/hire", h.Hire)
	bids.PUT("/:bidId/hire", h.Hire)
}

func (h *HTTPHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

type createJobRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Budget      *float64 `json:"budget" binding:"required"`
}

type updateJobRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Budget      *float64 `json:"budget"`
}

type submitBidRequest struct {
	JobID   string   `json:"jobId" binding:"required"`
	Message string   `json:"message" binding:"required"`
	Price   *float64 `json:"price" binding:"required"`
}

type updateBidRequest struct {
	Message *string  `json:"message"`
	Price   *float64 `json:"price"`
}

func (h *HTTPHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	job, err := h.jobs.CreateJob(ctx, callerID(c), domain.NewJobInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      *req.Budget,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": job})
}

func (h *HTTPHandler) ListOpenJobs(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	jobs, err := h.jobs.ListOpenJobs(ctx, c.Query("search"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(jobs), "data": jobs})
}

func (h *HTTPHandler) ListMyJobs(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	jobs, err := h.jobs.ListMyJobs(ctx, callerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(jobs), "data": jobs})
}

func (h *HTTPHandler) GetJob(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	job, err := h.jobs.GetJob(ctx, c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (h *HTTPHandler) UpdateJob(c *gin.Context) {
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	job, err := h.jobs.UpdateJob(ctx, c.Param("id"), callerID(c), domain.JobPatch{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (h *HTTPHandler) DeleteJob(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.jobs.DeleteJob(ctx, c.Param("id"), callerID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (h *HTTPHandler) SubmitBid(c *gin.Context) {
	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	bid, err := h.bids.SubmitBid(ctx, callerID(c), domain.NewBidInput{
		JobID:   req.JobID,
		Message: req.Message,
		Price:   *req.Price,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": bid})
}

func (h *HTTPHandler) ListBidsForJob(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	bids, err := h.bids.ListBidsForJob(ctx, c.Param("jobId"), callerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(bids), "data": bids})
}

func (h *HTTPHandler) ListMyBids(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	bids, err := h.bids.ListBidsByBidder(ctx, callerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(bids), "data": bids})
}

func (h *HTTPHandler) UpdateBid(c *gin.Context) {
	var req updateBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	bid, err := h.bids.UpdateBid(ctx, c.Param("bidId"), callerID(c), domain.BidPatch{
		Message: req.Message,
		Price:   req.Price,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bid})
}

func (h *HTTPHandler) WithdrawBid(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.bids.WithdrawBid(ctx, c.Param("bidId"), callerID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bid withdrawn"})
}

// Hire accepts a bid for the caller's job.
func (h *HTTPHandler) Hire(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	result, err := h.hiring.Hire(ctx, c.Param("bidId"), callerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bidder hired", "data": result})
}
