package bulk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/api"
	"tourprism/pkg/errors"
)

type fakeBackend struct {
	uploads int
	err     error
}

func (f *fakeBackend) UploadBulkAlerts(_ context.Context, name string, data []byte) (*api.BulkResult, error) {
	f.uploads++
	if f.err != nil {
		return nil, f.err
	}
	return &api.BulkResult{SuccessCount: 1, ErrorCount: 1, Errors: []api.BulkRowError{{Row: 2, Errors: []string{"bad"}}}}, nil
}

func (f *fakeBackend) BulkTemplate(context.Context) ([]byte, error) {
	return []byte("incidentType,location,description\n"), f.err
}

func TestIsCSV(t *testing.T) {
	assert.True(t, File{Name: "a.csv", ContentType: "text/csv"}.IsCSV())
	assert.True(t, File{Name: "a.CSV", ContentType: ""}.IsCSV())
	assert.True(t, File{Name: "a.csv", ContentType: "text/csv; charset=utf-8"}.IsCSV())
	assert.False(t, File{Name: "a.xlsx", ContentType: "application/octet-stream"}.IsCSV())
	assert.False(t, File{Name: "a.csv", ContentType: "image/png"}.IsCSV())
}

func TestUploadValidation(t *testing.T) {
	b := &fakeBackend{}
	u := NewUploader(b)

	_, err := u.Upload(context.Background(), nil)
	assert.Equal(t, "bulk.file_required", errors.GetFields(err)["file"])
	_, err = u.Upload(context.Background(), &File{Name: "x.pdf", ContentType: "application/pdf", Data: []byte("x")})
	assert.Equal(t, "bulk.csv_only", errors.GetFields(err)["file"])
	assert.Zero(t, b.uploads)

	res, err := u.Upload(context.Background(), &File{Name: "x.csv", ContentType: "text/csv", Data: []byte("a\n")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, 2, res.Errors[0].Row)
}

func TestUploadFailure(t *testing.T) {
	b := &fakeBackend{err: errors.WithCode(400, "Invalid CSV header")}
	_, err := NewUploader(b).Upload(context.Background(), &File{Name: "x.csv", ContentType: "text/csv", Data: []byte("a")})
	require.Error(t, err)
	assert.Equal(t, "Invalid CSV header", errors.GetMessage(err))

	_, err = NewUploader(b).Template(context.Background())
	assert.Equal(t, "bulk.template_failed", errors.GetMsgID(err))
}
