package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Resolver maps upload types to their root directories and checks subdirectories beneath them.
type Resolver struct {
	roots Roots
	fs    afero.Fs
}

func NewResolver(roots Roots, fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{roots: roots, fs: fs}
}

// RootFor returns the configured root directory of uploadType.
func (r *Resolver) RootFor(uploadType UploadType) (string, error) {
	root, ok := r.roots.lookup(uploadType)
	if !ok {
		return "", &ConfigurationError{UploadType: uploadType}
	}
	return root, nil
}

func (r *Resolver) Types() []UploadType {
	return r.roots.Types()
}

// Exists reports whether root/relativePath is an existing directory inside root.
func (r *Resolver) Exists(root, relativePath string) bool {
	absPath, err := r.Resolve(root, relativePath)
	if err != nil {
		return false
	}
	info, err := r.fs.Stat(absPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SubdirectoryPath joins root and name without touching the filesystem.
func (r *Resolver) SubdirectoryPath(root, name string) string {
	return filepath.Join(root, name)
}

// Resolve joins root and relativePath and rejects results outside root.
func (r *Resolver) Resolve(root, relativePath string) (string, error) {
	abs := filepath.Join(root, filepath.FromSlash(normalizeRelativePath(relativePath)))
	if !isPathWithinRoot(abs, root) {
		return "", ErrPathEscape
	}
	return abs, nil
}

func isPathWithinRoot(pathValue, root string) bool {
	cleanPath := filepath.Clean(pathValue)
	cleanRoot := filepath.Clean(root)

	rel, err := filepath.Rel(cleanRoot, cleanPath)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// EnsureRoots creates every configured root that does not exist yet.
func (r *Resolver) EnsureRoots() error {
	for _, uploadType := range r.roots.Types() {
		root, _ := r.roots.lookup(uploadType)
		if err := r.fs.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create root for %s: %w", uploadType, err)
		}
	}
	return nil
}
