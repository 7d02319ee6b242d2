package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"rescue-ranger/internal/pipeline"
)

const maxBodyBytes = 1 << 20 // 1MB

// Ingestor 读数摄入协作方
type Ingestor interface {
	Submit(ctx context.Context, raw *pipeline.RawReading) (*pipeline.IngestResult, error)
}

// ReadingHandler 读数摄入 Handler
type ReadingHandler struct {
	ingestor Ingestor
	logger   *zap.Logger
}

// NewReadingHandler 创建读数摄入 Handler
func NewReadingHandler(ingestor Ingestor, logger *zap.Logger) *ReadingHandler {
	return &ReadingHandler{
		ingestor: ingestor,
		logger:   logger,
	}
}

// SubmitReading 接收一条设备读数
// 成功返回 201 {"accepted":true,"emergency":bool}；通知扇出在响应后异步进行
func (h *ReadingHandler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw pipeline.RawReading
	if err := readBodyJSON(r, maxBodyBytes, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	result, err := h.ingestor.Submit(ctx, &raw)
	if err != nil {
		if pipeline.IsValidationError(err) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to ingest reading",
			zap.String("device_id", raw.DeviceID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to process reading"))
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Health 健康检查
func (h *ReadingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
