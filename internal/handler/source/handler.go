package source

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
	sourceService "github.com/zhouzirui/jr-studio/backend/internal/service/source"
	"github.com/zhouzirui/jr-studio/backend/pkg/utils"
)

const maxUploadMemory = 32 << 20

// 上传资料时展示的进度文案。
var (
	uploadSteps  = []string{"Đang nạp nguồn pháp lý mới...", "Trích xuất dữ liệu văn bản..."}
	uploadedStep = "Đã cập nhật nguồn pháp lý thành công."
)

// Handler 法律资料库的HTTP处理器
type Handler struct {
	registry *sourceService.Registry
}

// New 创建资料库处理器
func New(registry *sourceService.Registry) *Handler {
	return &Handler{registry: registry}
}

// UploadResponse reports what a batch added to the library.
type UploadResponse struct {
	Added  []source.Document `json:"added"`
	Failed []string          `json:"failed,omitempty"`
	Steps  []string          `json:"steps"`
	Total  int               `json:"total"`
	Policy string            `json:"policy"`
}

// RegisterRoutes 注册资料库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sources", h.handleList)
	r.Post("/sources", h.handleUpload)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	docs := h.registry.List()
	if docs == nil {
		docs = []source.Document{}
	}
	utils.RespondJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "multipart form with files is required")
		return
	}

	headers := r.MultipartForm.File["files"]
	files := make([]reader.File, 0, len(headers))
	for _, header := range headers {
		files = append(files, reader.FromMultipart(header))
	}

	result, err := h.registry.AddBatch(r.Context(), files)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, sourceService.ErrNoFiles) {
			status = http.StatusBadRequest
		}
		log.Printf("[source] upload rejected: %v", err)
		utils.RespondError(w, status, err.Error())
		return
	}

	added := result.Added
	if added == nil {
		added = []source.Document{}
	}
	utils.RespondJSON(w, http.StatusCreated, UploadResponse{
		Added:  added,
		Failed: result.FailedNames(),
		Steps:  append(append([]string(nil), uploadSteps...), uploadedStep),
		Total:  h.registry.Len(),
		Policy: string(h.registry.Policy()),
	})
}
