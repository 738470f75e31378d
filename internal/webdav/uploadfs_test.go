package webdav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"taeu.kr/uploadhub/internal/upload"
)

func newTestFS(t *testing.T) (*UploadTypeFS, map[string]string) {
	t.Helper()
	return newTestFSWithHooks(t, Hooks{})
}

func newTestFSWithHooks(t *testing.T, hooks Hooks) (*UploadTypeFS, map[string]string) {
	t.Helper()

	base := t.TempDir()
	mapping := map[string]string{
		"avatars": filepath.Join(base, "avatars"),
		"files":   filepath.Join(base, "files"),
	}
	for _, root := range mapping {
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatalf("failed to create root: %v", err)
		}
	}
	roots, err := upload.NewRoots(mapping)
	if err != nil {
		t.Fatalf("NewRoots returned error: %v", err)
	}
	resolver := upload.NewResolver(roots, afero.NewOsFs())
	return NewUploadTypeFS(resolver, afero.NewOsFs(), hooks).(*UploadTypeFS), mapping
}

func TestParsePath(t *testing.T) {
	testCases := []struct {
		input      string
		uploadType string
		remainder  string
	}{
		{input: "/", uploadType: "", remainder: ""},
		{input: "", uploadType: "", remainder: ""},
		{input: "/avatars", uploadType: "avatars", remainder: "/"},
		{input: "/avatars/", uploadType: "avatars", remainder: "/"},
		{input: "/avatars/2024/a.png", uploadType: "avatars", remainder: "/2024/a.png"},
		{input: "/avatars/x/..", uploadType: "avatars", remainder: "/"},
		{input: "/avatars/../files/a", uploadType: "files", remainder: "/a"},
	}

	for _, tc := range testCases {
		uploadType, remainder := parsePath(tc.input)
		if uploadType != tc.uploadType || remainder != tc.remainder {
			t.Fatalf("parsePath(%q) = (%q, %q), want (%q, %q)", tc.input, uploadType, remainder, tc.uploadType, tc.remainder)
		}
	}
}

func TestUploadTypeFS_RootListsUploadTypes(t *testing.T) {
	ufs, mapping := newTestFS(t)
	if err := os.RemoveAll(mapping["files"]); err != nil {
		t.Fatalf("failed to remove root: %v", err)
	}

	f, err := ufs.OpenFile(context.Background(), "/", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}
	defer f.Close()

	entries, err := f.Readdir(0)
	if err != nil {
		t.Fatalf("Readdir returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "avatars" || !entries[0].IsDir() {
		t.Fatalf("unexpected root entries: %+v", entries)
	}
}

func TestUploadTypeFS_RootReaddirPaging(t *testing.T) {
	ufs, _ := newTestFS(t)

	f, err := ufs.OpenFile(context.Background(), "/", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}

	first, err := f.Readdir(1)
	if err != nil || len(first) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(first), err)
	}
	second, err := f.Readdir(1)
	if err != nil || len(second) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(second), err)
	}
	if _, err := f.Readdir(1); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestUploadTypeFS_RootIsReadOnly(t *testing.T) {
	ufs, mapping := newTestFS(t)
	ctx := context.Background()

	if _, err := ufs.OpenFile(ctx, "/new.txt", os.O_CREATE|os.O_WRONLY, 0o644); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected unknown upload type to be missing, got %v", err)
	}
	if _, err := ufs.OpenFile(ctx, "/", os.O_CREATE|os.O_WRONLY, 0o644); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error at root, got %v", err)
	}
	if err := ufs.Mkdir(ctx, "/videos", 0o755); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error creating upload type, got %v", err)
	}
	if err := ufs.RemoveAll(ctx, "/avatars"); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error removing upload type root, got %v", err)
	}
	if err := ufs.Rename(ctx, "/avatars", "/renamed"); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error renaming upload type root, got %v", err)
	}
	if _, err := os.Stat(mapping["avatars"]); err != nil {
		t.Fatalf("expected upload type root to survive: %v", err)
	}
}

func TestUploadTypeFS_SubdirectoryOperations(t *testing.T) {
	ufs, mapping := newTestFS(t)
	ctx := context.Background()

	if err := ufs.Mkdir(ctx, "/avatars/2024", 0o755); err != nil {
		t.Fatalf("Mkdir returned error: %v", err)
	}
	if err := ufs.Rename(ctx, "/avatars/2024", "/files/2024"); err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mapping["files"], "2024")); err != nil {
		t.Fatalf("expected renamed directory in files root: %v", err)
	}

	info, err := ufs.Stat(ctx, "/files")
	if err != nil {
		t.Fatalf("Stat returned error: %v", err)
	}
	if info.Name() != "files" || !info.IsDir() {
		t.Fatalf("expected upload type root to be named after the type, got %q", info.Name())
	}

	if err := ufs.RemoveAll(ctx, "/files/2024"); err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mapping["files"], "2024")); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be removed, got %v", err)
	}
}

func TestUploadTypeFS_UploadTypeRootFileRejectsWrites(t *testing.T) {
	ufs, _ := newTestFS(t)

	f, err := ufs.OpenFile(context.Background(), "/avatars", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("x")); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	info, err := f.Stat()
	if err != nil || info.Name() != "avatars" {
		t.Fatalf("expected stat name avatars, got %v (%v)", info, err)
	}
}

type recordedOperation struct {
	op     upload.Operation
	result upload.OperationResult
}

type fakeRecorder struct {
	records []recordedOperation
}

func (r *fakeRecorder) Record(_ context.Context, op upload.Operation, result upload.OperationResult) error {
	r.records = append(r.records, recordedOperation{op: op, result: result})
	return nil
}

func TestUploadTypeFS_MutationsAreRecordedAndInvalidateUsage(t *testing.T) {
	recorder := &fakeRecorder{}
	var invalidated []upload.UploadType
	ufs, _ := newTestFSWithHooks(t, Hooks{
		Recorder: recorder,
		Invalidate: func(uploadTypes ...upload.UploadType) {
			invalidated = append(invalidated, uploadTypes...)
		},
	})
	ctx := context.Background()

	if err := ufs.Mkdir(ctx, "/avatars/2024", 0o755); err != nil {
		t.Fatalf("Mkdir returned error: %v", err)
	}
	if err := ufs.Rename(ctx, "/avatars/2024", "/avatars/2025"); err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if err := ufs.Rename(ctx, "/avatars/2025", "/files/archive"); err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if err := ufs.RemoveAll(ctx, "/files/archive"); err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}

	want := []upload.Operation{
		{Kind: upload.OperationCreate, UploadType: "avatars", Path: "2024"},
		{Kind: upload.OperationRename, UploadType: "avatars", Path: "2024", NewName: "2025"},
		{Kind: upload.OperationMove, UploadType: "avatars", Path: "2025", TargetUploadType: "files", TargetPath: "archive"},
		{Kind: upload.OperationRemove, UploadType: "files", Path: "archive"},
	}
	if len(recorder.records) != len(want) {
		t.Fatalf("expected %d records, got %+v", len(want), recorder.records)
	}
	for i, rec := range recorder.records {
		if rec.op != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, rec.op, want[i])
		}
		if !rec.result.Success || rec.result.StatusCode != http.StatusOK {
			t.Fatalf("record %d: expected success, got %+v", i, rec.result)
		}
	}

	wantInvalidated := []upload.UploadType{"avatars", "avatars", "avatars", "files", "files"}
	if len(invalidated) != len(wantInvalidated) {
		t.Fatalf("expected invalidations %v, got %v", wantInvalidated, invalidated)
	}
	for i := range wantInvalidated {
		if invalidated[i] != wantInvalidated[i] {
			t.Fatalf("expected invalidations %v, got %v", wantInvalidated, invalidated)
		}
	}
}

func TestUploadTypeFS_FailedMutationIsRecordedWithoutInvalidation(t *testing.T) {
	recorder := &fakeRecorder{}
	invalidations := 0
	ufs, _ := newTestFSWithHooks(t, Hooks{
		Recorder:   recorder,
		Invalidate: func(...upload.UploadType) { invalidations++ },
	})

	if err := ufs.Mkdir(context.Background(), "/avatars/missing/child", 0o755); err == nil {
		t.Fatal("expected Mkdir under a missing parent to fail")
	}
	if invalidations != 0 {
		t.Fatalf("expected no invalidation, got %d", invalidations)
	}
	if len(recorder.records) != 1 {
		t.Fatalf("expected one record, got %+v", recorder.records)
	}
	result := recorder.records[0].result
	if result.Success || result.Kind != upload.KindNotFound {
		t.Fatalf("expected not_found failure, got %+v", result)
	}
}
