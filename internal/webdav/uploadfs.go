package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/net/webdav"
	"taeu.kr/uploadhub/internal/upload"
)

// UploadTypeFS는 WebDAV FileSystem 인터페이스를 구현하여
// 루트에서 모든 업로드 타입을 가상 디렉토리로 노출한다.
type UploadTypeFS struct {
	resolver *upload.Resolver
	fs       afero.Fs
	hooks    Hooks
}

// Hooks는 WebDAV로 일어난 디렉토리 변경을 전달받는다. 둘 다 nil이어도 된다
type Hooks struct {
	Recorder   upload.Recorder
	Invalidate func(uploadTypes ...upload.UploadType)
}

func NewUploadTypeFS(resolver *upload.Resolver, fs afero.Fs, hooks Hooks) webdav.FileSystem {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &UploadTypeFS{
		resolver: resolver,
		fs:       fs,
		hooks:    hooks,
	}
}

// parsePath는 WebDAV 경로에서 업로드 타입과 나머지 경로를 분리한다.
// "/" → ("", "")
// "/avatars" → ("avatars", "/")
// "/avatars/2024/a.png" → ("avatars", "/2024/a.png")
func parsePath(name string) (uploadType, remainder string) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return "", ""
	}

	parts := strings.SplitN(name, "/", 2)
	uploadType = parts[0]
	if len(parts) > 1 && parts[1] != "" {
		remainder = "/" + parts[1]
	} else {
		remainder = "/"
	}
	return uploadType, remainder
}

func (ufs *UploadTypeFS) resolveRealPath(uploadType, remainder string) (string, error) {
	root, err := ufs.resolver.RootFor(upload.UploadType(uploadType))
	if err != nil {
		return "", os.ErrNotExist
	}

	realPath, err := ufs.resolver.Resolve(root, remainder)
	if err != nil {
		// 업로드 타입 루트 밖으로 나가는 것 방지
		if errors.Is(err, upload.ErrPathEscape) {
			return "", os.ErrPermission
		}
		return "", err
	}

	return realPath, nil
}

func (ufs *UploadTypeFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	uploadType, remainder := parsePath(name)
	if uploadType == "" || remainder == "/" {
		return os.ErrPermission
	}

	realPath, err := ufs.resolveRealPath(uploadType, remainder)
	if err != nil {
		return err
	}

	err = ufs.fs.Mkdir(realPath, perm)
	ufs.notify(ctx, upload.Operation{
		Kind:       upload.OperationCreate,
		UploadType: upload.UploadType(uploadType),
		Path:       relative(remainder),
	}, err)
	return err
}

func (ufs *UploadTypeFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	uploadType, remainder := parsePath(name)

	// 루트: 가상 디렉토리 (업로드 타입 목록)
	if uploadType == "" {
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
			return nil, os.ErrPermission
		}
		return &uploadRootDir{resolver: ufs.resolver, fs: ufs.fs}, nil
	}

	realPath, err := ufs.resolveRealPath(uploadType, remainder)
	if err != nil {
		return nil, err
	}

	f, err := ufs.fs.OpenFile(realPath, flag, perm)
	if err != nil {
		return nil, err
	}

	// 업로드 타입 루트는 Stat에서 업로드 타입 이름으로 표시
	if remainder == "/" {
		return &uploadTypeNamedFile{File: f, name: uploadType}, nil
	}

	return f, nil
}

func (ufs *UploadTypeFS) RemoveAll(ctx context.Context, name string) error {
	uploadType, remainder := parsePath(name)
	if uploadType == "" || remainder == "/" {
		return os.ErrPermission
	}

	realPath, err := ufs.resolveRealPath(uploadType, remainder)
	if err != nil {
		return err
	}

	err = ufs.fs.RemoveAll(realPath)
	ufs.notify(ctx, upload.Operation{
		Kind:       upload.OperationRemove,
		UploadType: upload.UploadType(uploadType),
		Path:       relative(remainder),
	}, err)
	return err
}

func (ufs *UploadTypeFS) Rename(ctx context.Context, oldName, newName string) error {
	oldType, oldRem := parsePath(oldName)
	newType, newRem := parsePath(newName)

	if oldType == "" || newType == "" || oldRem == "/" || newRem == "/" {
		return os.ErrPermission
	}

	oldPath, err := ufs.resolveRealPath(oldType, oldRem)
	if err != nil {
		return err
	}

	newPath, err := ufs.resolveRealPath(newType, newRem)
	if err != nil {
		return err
	}

	err = ufs.fs.Rename(oldPath, newPath)
	ufs.notify(ctx, renameOperation(oldType, oldRem, newType, newRem), err)
	return err
}

// 같은 부모 아래 이름만 바뀌면 rename, 아니면 move로 기록한다
func renameOperation(oldType, oldRem, newType, newRem string) upload.Operation {
	if oldType == newType && path.Dir(oldRem) == path.Dir(newRem) {
		return upload.Operation{
			Kind:       upload.OperationRename,
			UploadType: upload.UploadType(oldType),
			Path:       relative(oldRem),
			NewName:    path.Base(newRem),
		}
	}
	return upload.Operation{
		Kind:             upload.OperationMove,
		UploadType:       upload.UploadType(oldType),
		Path:             relative(oldRem),
		TargetUploadType: upload.UploadType(newType),
		TargetPath:       relative(newRem),
	}
}

func (ufs *UploadTypeFS) notify(ctx context.Context, op upload.Operation, err error) {
	if err == nil && ufs.hooks.Invalidate != nil {
		if op.TargetUploadType != "" {
			ufs.hooks.Invalidate(op.UploadType, op.TargetUploadType)
		} else {
			ufs.hooks.Invalidate(op.UploadType)
		}
	}

	if ufs.hooks.Recorder == nil {
		return
	}
	if recErr := ufs.hooks.Recorder.Record(ctx, op, webDAVResult(op.Kind, err)); recErr != nil {
		log.Warn().Err(recErr).Str("operation", string(op.Kind)).Msg("failed to record WebDAV operation")
	}
}

func webDAVResult(kind upload.OperationKind, err error) upload.OperationResult {
	if err == nil {
		return upload.OperationResult{
			Success:    true,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("WebDAV %s succeeded.", kind),
		}
	}

	errKind := upload.KindIO
	if errors.Is(err, os.ErrNotExist) {
		errKind = upload.KindNotFound
	} else if errors.Is(err, os.ErrExist) {
		errKind = upload.KindValidation
	}
	return upload.OperationResult{
		StatusCode: http.StatusInternalServerError,
		Message:    fmt.Sprintf("WebDAV %s failed.", kind),
		Kind:       errKind,
		Err:        err,
	}
}

func relative(remainder string) string {
	return strings.TrimPrefix(remainder, "/")
}

func (ufs *UploadTypeFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	uploadType, remainder := parsePath(name)

	if uploadType == "" {
		return &virtualDirInfo{name: "/", modTime: time.Now()}, nil
	}

	realPath, err := ufs.resolveRealPath(uploadType, remainder)
	if err != nil {
		return nil, err
	}

	fi, err := ufs.fs.Stat(realPath)
	if err != nil {
		return nil, err
	}

	if remainder == "/" {
		return &virtualDirInfo{name: uploadType, modTime: fi.ModTime()}, nil
	}

	return fi, nil
}

// --- 가상 루트 디렉토리 ---

type uploadRootDir struct {
	resolver *upload.Resolver
	fs       afero.Fs
	entries  []os.FileInfo
	pos      int
}

func (d *uploadRootDir) Read([]byte) (int, error) {
	return 0, fmt.Errorf("cannot read directory")
}

func (d *uploadRootDir) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}

func (d *uploadRootDir) Seek(int64, int) (int64, error) {
	return 0, nil
}

func (d *uploadRootDir) Close() error {
	return nil
}

func (d *uploadRootDir) Stat() (fs.FileInfo, error) {
	return &virtualDirInfo{name: "/", modTime: time.Now()}, nil
}

func (d *uploadRootDir) Readdir(count int) ([]fs.FileInfo, error) {
	if d.entries == nil {
		types := d.resolver.Types()
		d.entries = make([]os.FileInfo, 0, len(types))
		for _, uploadType := range types {
			root, err := d.resolver.RootFor(uploadType)
			if err != nil {
				return nil, err
			}
			// 루트가 아직 없는 업로드 타입은 목록에서 제외
			info, err := d.fs.Stat(root)
			if err != nil || !info.IsDir() {
				continue
			}
			d.entries = append(d.entries, &virtualDirInfo{
				name:    string(uploadType),
				modTime: info.ModTime(),
			})
		}
	}

	if count <= 0 {
		entries := d.entries[d.pos:]
		d.pos = len(d.entries)
		return entries, nil
	}

	if d.pos >= len(d.entries) {
		return nil, io.EOF
	}

	end := d.pos + count
	if end > len(d.entries) {
		end = len(d.entries)
	}
	entries := d.entries[d.pos:end]
	d.pos = end
	return entries, nil
}

// --- 업로드 타입 이름으로 표시되는 파일 래퍼 ---

type uploadTypeNamedFile struct {
	afero.File
	name string
}

func (f *uploadTypeNamedFile) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}

func (f *uploadTypeNamedFile) Stat() (fs.FileInfo, error) {
	fi, err := f.File.Stat()
	if err != nil {
		return nil, err
	}
	return &virtualDirInfo{name: f.name, modTime: fi.ModTime()}, nil
}

// --- 가상 디렉토리 FileInfo ---

type virtualDirInfo struct {
	name    string
	modTime time.Time
}

func (i *virtualDirInfo) Name() string       { return i.name }
func (i *virtualDirInfo) Size() int64        { return 0 }
func (i *virtualDirInfo) Mode() fs.FileMode  { return os.ModeDir | 0555 }
func (i *virtualDirInfo) ModTime() time.Time { return i.modTime }
func (i *virtualDirInfo) IsDir() bool        { return true }
func (i *virtualDirInfo) Sys() interface{}   { return nil }
