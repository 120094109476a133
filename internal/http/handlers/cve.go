package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/cvetrack-backend/internal/domain"
	"github.com/yungbote/cvetrack-backend/internal/http/response"
	"github.com/yungbote/cvetrack-backend/internal/ingestion/normalize"
	"github.com/yungbote/cvetrack-backend/internal/pkg/dbctx"
	"github.com/yungbote/cvetrack-backend/internal/platform/apierr"
	"github.com/yungbote/cvetrack-backend/internal/services"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

type CVEHandler struct {
	cveService    services.CVEService
	ingestService services.IngestService
}

func NewCVEHandler(cveService services.CVEService, ingestService services.IngestService) *CVEHandler {
	return &CVEHandler{cveService: cveService, ingestService: ingestService}
}

type createCVERequest struct {
	CVEID            string  `json:"cve_id" binding:"required"`
	PublishedDate    string  `json:"published_date" binding:"required"`
	LastModifiedDate string  `json:"last_modified_date" binding:"required"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	ProblemTypes     *string `json:"problem_types"`
}

type batchUploadRequest struct {
	CVERecords []json.RawMessage `json:"cve_records"`
}

type batchUploadResponse struct {
	Message string `json:"message"`
	services.CommitResult
}

func badRequest(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
}

func serviceError(c *gin.Context, err error) {
	response.RespondAPIError(c, apierr.FromService("cve", err))
}

// parseTime accepts RFC 3339 plus the zone-less layouts used by the source feed.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return normalize.ParseTimestamp(s)
}

func optionalTime(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &t, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}

// POST /cve/
func (h *CVEHandler) Create(c *gin.Context) {
	var req createCVERequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	published, err := parseTime(req.PublishedDate)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid published_date: %w", err))
		return
	}
	modified, err := parseTime(req.LastModifiedDate)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid last_modified_date: %w", err))
		return
	}
	rec, err := h.cveService.Create(dbctx.New(c.Request.Context()), services.CreateCVEInput{
		CVEID:            req.CVEID,
		PublishedDate:    published,
		LastModifiedDate: modified,
		Title:            req.Title,
		Description:      req.Description,
		ProblemTypes:     req.ProblemTypes,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondCreated(c, rec)
}

// GET /cve/:cve_id
func (h *CVEHandler) Get(c *gin.Context) {
	rec, err := h.cveService.Get(dbctx.New(c.Request.Context()), c.Param("cve_id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondOK(c, rec)
}

// PUT /cve/:cve_id
func (h *CVEHandler) Update(c *gin.Context) {
	var patch types.CVERecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.cveService.Update(dbctx.New(c.Request.Context()), c.Param("cve_id"), patch); err != nil {
		serviceError(c, err)
		return
	}
	response.RespondMessage(c, "CVE updated successfully")
}

// DELETE /cve/:cve_id
func (h *CVEHandler) Delete(c *gin.Context) {
	if err := h.cveService.Delete(dbctx.New(c.Request.Context()), c.Param("cve_id")); err != nil {
		serviceError(c, err)
		return
	}
	response.RespondMessage(c, "CVE deleted successfully")
}

// POST /cve/batch-upload
func (h *CVEHandler) BatchUpload(c *gin.Context) {
	var req batchUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", err)
			return
		}
		badRequest(c, err)
		return
	}
	if req.CVERecords == nil {
		badRequest(c, errors.New("cve_records is required"))
		return
	}
	res, err := h.ingestService.BatchUpload(dbctx.New(c.Request.Context()), req.CVERecords)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondOK(c, batchUploadResponse{
		Message:      "CVE records uploaded successfully",
		CommitResult: *res,
	})
}

// GET /cve-utils/date-range?start_date=&end_date=
func (h *CVEHandler) DateRange(c *gin.Context) {
	start, err := optionalTime(c, "start_date")
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := optionalTime(c, "end_date")
	if err != nil {
		badRequest(c, err)
		return
	}
	rows, err := h.cveService.SearchByDateRange(dbctx.New(c.Request.Context()), start, end)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /cve-utils/search?text=
func (h *CVEHandler) Search(c *gin.Context) {
	text, ok := c.GetQuery("text")
	if !ok {
		badRequest(c, errors.New("text query parameter is required"))
		return
	}
	rows, err := h.cveService.SearchByText(dbctx.New(c.Request.Context()), text)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /cve-utils/list?page=&size=
func (h *CVEHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page", defaultPage)
	if err != nil {
		badRequest(c, err)
		return
	}
	size, err := queryInt(c, "size", defaultPageSize)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.cveService.List(dbctx.New(c.Request.Context()), page, size)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.RespondOK(c, out)
}
