package bulk

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
)

// TemplateFilename is the name the template is downloaded under.
const TemplateFilename = "alert-template.csv"

type Backend interface {
	UploadBulkAlerts(ctx context.Context, filename string, data []byte) (*api.BulkResult, error)
	BulkTemplate(ctx context.Context) ([]byte, error)
}

// File is a picked upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsCSV accepts text/csv, or a .csv name when the browser sent no useful type.
func (f File) IsCSV() bool {
	if ct, _, err := mime.ParseMediaType(f.ContentType); err == nil && ct == "text/csv" {
		return true
	}
	switch f.ContentType {
	case "", "application/octet-stream", "application/vnd.ms-excel":
		return strings.EqualFold(filepath.Ext(f.Name), ".csv")
	}
	return false
}

// Uploader 批量上传警报
type Uploader struct {
	backend Backend
}

func NewUploader(b Backend) *Uploader { return &Uploader{backend: b} }

func (u *Uploader) Upload(ctx context.Context, f *File) (*api.BulkResult, error) {
	if f == nil || len(f.Data) == 0 {
		return nil, errors.Validation(map[string]string{"file": "bulk.file_required"})
	}
	if !f.IsCSV() {
		return nil, errors.Validation(map[string]string{"file": "bulk.csv_only"})
	}
	res, err := u.backend.UploadBulkAlerts(ctx, f.Name, f.Data)
	if err != nil {
		logger.Warn("bulk upload failed", zap.String("file", f.Name), zap.Error(err))
		id, raw := api.Describe(err, "bulk.upload_failed")
		return nil, errors.Wrap(errors.KindOf(err), err, raw).WithMsgID(id)
	}
	logger.Info("bulk upload done",
		zap.String("file", f.Name), zap.Int("success", res.SuccessCount), zap.Int("errors", res.ErrorCount))
	return res, nil
}

func (u *Uploader) Template(ctx context.Context) ([]byte, error) {
	b, err := u.backend.BulkTemplate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.KindOf(err), err, "").WithMsgID("bulk.template_failed")
	}
	return b, nil
}
