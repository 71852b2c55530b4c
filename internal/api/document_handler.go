package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resumate/internal/api/middleware"
	"resumate/internal/database"
	"resumate/internal/master"
)

const maxDocumentSize = 10 << 20

var allowedDocumentExt = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
}

var errMaliciousFile = errors.New("malicious file detected")

// objectStorage 是文档处理所需的对象存储能力，由 storage.Documents 实现。
type objectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DownloadURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// fileScanner 在上传前扫描文件内容。
type fileScanner interface {
	Scan(r io.Reader) error
}

// clamdScanner 通过 clamd 的 INSTREAM 扫描文件。
type clamdScanner struct {
	addr string
}

func (s clamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := clamd.NewClamd(s.addr).ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}

// DocumentHandler 负责源文档（简历 PDF 等）的上传、列表、访问与删除。
type DocumentHandler struct {
	store   *master.Store
	storage objectStorage
	scanner fileScanner
	logger  *slog.Logger
}

// NewDocumentHandler 构造文档处理器；clamdAddr 为空时跳过病毒扫描。
func NewDocumentHandler(store *master.Store, storageClient objectStorage, logger *slog.Logger, clamdAddr string) *DocumentHandler {
	h := &DocumentHandler{store: store, storage: storageClient, logger: logger}
	if strings.TrimSpace(clamdAddr) != "" {
		h.scanner = clamdScanner{addr: clamdAddr}
	}
	return h
}

// Upload 扫描并上传文件，随后写入 source_documents 记录。
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size <= 0 || file.Size > maxDocumentSize {
		BadRequest(c, "file must be between 1 byte and 10MB")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType, allowed := allowedDocumentExt[ext]
	if !allowed {
		BadRequest(c, "unsupported file type")
		return
	}

	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	if h.scanner != nil {
		reader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open file")
			return
		}
		err = h.scanner.Scan(reader)
		reader.Close()
		if errors.Is(err, errMaliciousFile) {
			logger.Warn("malicious upload rejected", slog.String("file_name", file.Filename))
			BadRequest(c, "malicious file detected")
			return
		}
		if err != nil {
			logger.Error("scan file", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	objectKey := fmt.Sprintf("source-documents/%d/%s%s", userID, uuid.NewString(), ext)
	if err := h.storage.Put(c.Request.Context(), objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	doc := database.SourceDocument{
		UserID:      userID,
		FileName:    filepath.Base(file.Filename),
		ObjectKey:   objectKey,
		ContentType: contentType,
		SizeBytes:   file.Size,
	}
	if err := h.store.CreateDocument(c.Request.Context(), &doc); err != nil {
		if delErr := h.storage.Remove(c.Request.Context(), objectKey); delErr != nil {
			logger.Error("cleanup orphan object", slog.String("object_key", objectKey), slog.Any("error", delErr))
		}
		respondError(c, err)
		return
	}

	logger.Info("source document uploaded", slog.Uint64("document_id", uint64(doc.ID)))
	OK(c, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	docs, err := h.store.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	OK(c, http.StatusOK, docs)
}

// Link 返回文档的临时预签名下载地址。
func (h *DocumentHandler) Link(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.store.GetDocument(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	const ttl = 15 * time.Minute
	signedURL, err := h.storage.DownloadURL(c.Request.Context(), doc.ObjectKey, doc.FileName, ttl)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	OK(c, http.StatusOK, gin.H{"url": signedURL, "expires_in": int(ttl.Seconds())})
}

// Delete 删除记录并清理对象；引用它的技能失去来源但保留。
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.store.DeleteDocument(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.storage.Remove(c.Request.Context(), doc.ObjectKey); err != nil {
		middleware.LoggerFromContext(c).Warn("delete object failed", slog.String("object_key", doc.ObjectKey), slog.Any("error", err))
	}
	OK(c, http.StatusOK, gin.H{"id": id})
}
