package httpapi

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	extract         *usecase.ExtractFramesUseCase
	query           *usecase.FrameQueryUseCase
	archive         *usecase.ArchiveUseCase
	defaultPageSize int
	logger          *zap.Logger
}

type uploadResponse struct {
	JobID string `json:"job_id"`
}

type imagesResponse struct {
	Images     []string `json:"images"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
	Total      int      `json:"total"`
	PageSize   int      `json:"page_size"`
}

type jobResponse struct {
	JobID       string     `json:"job_id"`
	Mode        string     `json:"mode"`
	Threshold   float64    `json:"threshold,omitempty"`
	Status      string     `json:"status"`
	FrameCount  int        `json:"frame_count"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HandleUpload runs the extraction inline; the response carries the finished job id.
func (h *Handler) HandleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fmt.Errorf("%w: multipart field 'file' is required", entity.ErrInvalidInput), uuid.Nil)
	}

	var threshold *float64
	if raw := c.FormValue("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return writeError(c, fmt.Errorf("%w: threshold %q is not a number", entity.ErrInvalidInput, raw), uuid.Nil)
		}
		threshold = &v
	}

	video, err := fh.Open()
	if err != nil {
		return writeError(c, fmt.Errorf("%w: open upload: %v", entity.ErrStorage, err), uuid.Nil)
	}
	defer video.Close()

	id, err := h.extract.Execute(c.UserContext(), usecase.ExtractFramesInput{
		Video:     video,
		Filename:  fh.Filename,
		Mode:      c.FormValue("mode"),
		Threshold: threshold,
	})
	if err != nil {
		return writeError(c, err, id)
	}
	return c.Status(fiber.StatusOK).JSON(uploadResponse{JobID: id.String()})
}

func (h *Handler) HandleImages(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return writeError(c, err, uuid.Nil)
	}

	page, err := intQuery(c, "page", 1)
	if err != nil {
		return writeError(c, err, id)
	}
	limit, err := intQuery(c, "limit", h.defaultPageSize)
	if err != nil {
		return writeError(c, err, id)
	}

	result, err := h.query.Page(c.UserContext(), id, page, limit)
	if err != nil {
		return writeError(c, err, id)
	}

	images := make([]string, 0, len(result.Items))
	for _, it := range result.Items {
		images = append(images, it.URL)
	}
	return c.JSON(imagesResponse{
		Images:     images,
		Page:       result.Page,
		TotalPages: result.TotalPages,
		Total:      result.Total,
		PageSize:   result.PageSize,
	})
}

// HandleDownload streams the archive. Lookup errors are reported before any byte is
// sent; a failure mid-stream can only truncate the body.
func (h *Handler) HandleDownload(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return writeError(c, err, uuid.Nil)
	}

	job, err := h.archive.Prepare(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, id)
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Attachment(id.String() + ".zip")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.archive.Write(context.Background(), job, w); err != nil {
			h.logger.Warn("archive download aborted", zap.String("job_id", id.String()), zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			h.logger.Debug("archive client went away", zap.String("job_id", id.String()), zap.Error(err))
		}
	})
	return nil
}

func (h *Handler) HandleJob(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return writeError(c, err, uuid.Nil)
	}

	job, err := h.query.Job(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, id)
	}
	return c.JSON(jobResponse{
		JobID:       job.ID.String(),
		Mode:        string(job.Mode),
		Threshold:   job.Threshold,
		Status:      string(job.Status),
		FrameCount:  job.FrameCount,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	})
}

func (h *Handler) HandleFrame(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return writeError(c, err, uuid.Nil)
	}

	rc, err := h.query.OpenFrame(c.UserContext(), id, c.Params("name"))
	if err != nil {
		return writeError(c, err, id)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400, immutable")
	return c.SendStream(rc)
}

// Unknown and malformed ids are both reported as not found.
func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("job_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: job %q", entity.ErrNotFound, raw)
	}
	return id, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", entity.ErrInvalidInput, key, raw)
	}
	return v, nil
}
