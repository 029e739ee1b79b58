package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/storage"
)

// Разрешённые типы документов для заявок продавцов
var allowedDocumentMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// Разрешённые расширения документов
var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type UploadHandler struct {
	documents *storage.DocumentStorage
}

func NewUploadHandler(documents *storage.DocumentStorage) *UploadHandler {
	return &UploadHandler{documents: documents}
}

// UploadDocument POST /uploads/documents
// Принимает multipart-файл, проверяет расширение и магические байты,
// сохраняет документ в каталоге пользователя.
func (h *UploadHandler) UploadDocument(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "файл не найден в запросе")
		return
	}

	// Валидация расширения файла
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedDocumentExtensions[ext] {
		common.RespondBadRequest(c, fmt.Sprintf("неподдерживаемый формат файла. Разрешены: %s", strings.Join(allowedDocumentExtensionList(), ", ")))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось открыть файл")
		return
	}
	defer src.Close()

	// Читаем первые 512 байт для проверки магических байтов
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		common.RespondBadRequest(c, "не удалось определить тип файла")
		return
	}

	if !allowedDocumentMimeTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, fmt.Sprintf("неподдерживаемый тип файла (%s)", kind.MIME.Value))
		return
	}

	// Содержимое уже частично прочитано — склеиваем обратно
	reader := io.MultiReader(bytes.NewReader(buffer[:n]), src)

	path, size, err := h.documents.Save(c.Request.Context(), userID, file.Filename, reader)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"path":      path,
		"size":      size,
		"mime_type": kind.MIME.Value,
	})
}

func allowedDocumentExtensionList() []string {
	exts := make([]string, 0, len(allowedDocumentExtensions))
	for ext := range allowedDocumentExtensions {
		exts = append(exts, ext)
	}
	return exts
}
