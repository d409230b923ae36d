package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"receipts-bot/internal/common/errors"
	"receipts-bot/internal/domain/receipt"
	"receipts-bot/internal/service/review"
)

// ReceiptReader is the read side of the record store used by the review UI.
type ReceiptReader interface {
	ListReceipts(ctx context.Context, f receipt.Filter) ([]receipt.Receipt, error)
	GetReceipt(ctx context.Context, id int64) (*receipt.Receipt, error)
	FileURL(ctx context.Context, r *receipt.Receipt) (string, error)
}

// Reviewer applies operator decisions.
type Reviewer interface {
	Approve(ctx context.Context, id int64) (*review.Result, error)
	Reject(ctx context.Context, id int64, reason string) (*review.Result, error)
	BulkApprove(ctx context.Context, ids []int64) (*review.BulkResult, error)
	BulkReject(ctx context.Context, ids []int64) (*review.BulkResult, error)
}

const maxListLimit = 100

type ReceiptHandler struct {
	receipts ReceiptReader
	reviews  Reviewer
}

func NewReceiptHandler(g *gin.RouterGroup, receipts ReceiptReader, reviews Reviewer) {
	h := &ReceiptHandler{receipts: receipts, reviews: reviews}

	rg := g.Group("/receipts")
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/reject", h.reject)
	rg.POST("/bulk/approve", h.bulkApprove)
	rg.POST("/bulk/reject", h.bulkReject)
}

type receiptView struct {
	receipt.Receipt
	FileURL string `json:"file_url,omitempty"`
}

type rejectReq struct {
	Reason string `json:"reason"`
}

type bulkReq struct {
	IDs []int64 `json:"ids"`
}

func (h *ReceiptHandler) list(c *gin.Context) {
	f := receipt.Filter{Status: receipt.Status(c.Query("status"))}
	if f.Status != "" && !f.Status.Valid() {
		_ = c.Error(errors.NewValidationError("status", "must be one of [pending approved rejected]"))
		return
	}
	var err error
	if f.Limit, err = intQuery(c, "limit", 50); err != nil {
		_ = c.Error(err)
		return
	}
	if f.Offset, err = intQuery(c, "offset", 0); err != nil {
		_ = c.Error(err)
		return
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	items, err := h.receipts.ListReceipts(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if items == nil {
		items = []receipt.Receipt{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": f.Limit, "offset": f.Offset})
}

func (h *ReceiptHandler) get(c *gin.Context) {
	id, ok := receiptID(c)
	if !ok {
		return
	}
	r, err := h.receipts.GetReceipt(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	link, err := h.receipts.FileURL(c.Request.Context(), r)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, receiptView{Receipt: *r, FileURL: link})
}

func (h *ReceiptHandler) approve(c *gin.Context) {
	id, ok := receiptID(c)
	if !ok {
		return
	}
	res, err := h.reviews.Approve(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReceiptHandler) reject(c *gin.Context) {
	id, ok := receiptID(c)
	if !ok {
		return
	}
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeBadRequest, "invalid json"))
		return
	}
	res, err := h.reviews.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReceiptHandler) bulkApprove(c *gin.Context) {
	h.bulk(c, h.reviews.BulkApprove)
}

func (h *ReceiptHandler) bulkReject(c *gin.Context) {
	h.bulk(c, h.reviews.BulkReject)
}

func (h *ReceiptHandler) bulk(c *gin.Context, apply func(context.Context, []int64) (*review.BulkResult, error)) {
	var req bulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.Wrap(err, errors.ErrCodeBadRequest, "invalid json"))
		return
	}
	res, err := apply(c.Request.Context(), req.IDs)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func receiptID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errors.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.NewValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}
