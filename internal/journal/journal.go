package journal

import (
	"time"

	"taeu.kr/uploadhub/internal/upload"
)

// Entry는 디렉토리 작업 한 건의 기록
type Entry struct {
	ID               string               `json:"id"`
	Operation        upload.OperationKind `json:"operation"`
	UploadType       upload.UploadType    `json:"uploadType"`
	Path             string               `json:"path"`
	NewName          string               `json:"newName,omitempty"`
	TargetUploadType upload.UploadType    `json:"targetUploadType,omitempty"`
	TargetPath       string               `json:"targetPath,omitempty"`
	Success          bool                 `json:"success"`
	Partial          bool                 `json:"partial"`
	StatusCode       int                  `json:"statusCode"`
	Message          string               `json:"message"`
	CreatedAt        time.Time            `json:"createdAt"`
}

func newEntry(id string, op upload.Operation, result upload.OperationResult, now time.Time) *Entry {
	return &Entry{
		ID:               id,
		Operation:        op.Kind,
		UploadType:       upload.NormalizeUploadType(string(op.UploadType)),
		Path:             op.Path,
		NewName:          op.NewName,
		TargetUploadType: upload.NormalizeUploadType(string(op.TargetUploadType)),
		TargetPath:       op.TargetPath,
		Success:          result.Success,
		Partial:          result.Partial,
		StatusCode:       result.StatusCode,
		Message:          result.Message,
		CreatedAt:        now,
	}
}
