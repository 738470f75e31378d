package browse

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Tree는 디렉토리 구조 스냅샷. 리프는 빈 맵이며 파일은 포함하지 않는다
type Tree map[string]Tree

// Builder walks directories through Fs. The zero value uses the OS filesystem and ignores symlinks.
type Builder struct {
	Fs             afero.Fs
	FollowSymlinks bool
}

// BuildTree returns the subdirectory tree beneath root, keyed by full path or by folder name.
func BuildTree(root string, useNameAsKey bool) (Tree, error) {
	return Builder{}.Build(root, useNameAsKey)
}

// BuildTreeForMany builds one tree per root, keyed by the root string as given.
func BuildTreeForMany(roots []string, useNameAsKey bool) (map[string]Tree, error) {
	return Builder{}.BuildMany(roots, useNameAsKey)
}

func (b Builder) Build(root string, useNameAsKey bool) (Tree, error) {
	fs := b.fs()
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("fail to read directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fail to read directory: %s is not a directory", root)
	}
	return b.walk(fs, root, useNameAsKey, []os.FileInfo{info})
}

func (b Builder) BuildMany(roots []string, useNameAsKey bool) (map[string]Tree, error) {
	trees := make(map[string]Tree, len(roots))
	for _, root := range roots {
		tree, err := b.Build(root, useNameAsKey)
		if err != nil {
			return nil, err
		}
		trees[root] = tree
	}
	return trees, nil
}

func (b Builder) fs() afero.Fs {
	if b.Fs == nil {
		return afero.NewOsFs()
	}
	return b.Fs
}

// ancestors holds the directories on the current path, used to stop symlink loops.
func (b Builder) walk(fs afero.Fs, dir string, useNameAsKey bool, ancestors []os.FileInfo) (Tree, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("fail to read directory: %w", err)
	}

	tree := make(Tree)
	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		key := fullPath
		if useNameAsKey {
			key = entry.Name()
		}

		if entry.Mode()&os.ModeSymlink != 0 {
			if !b.FollowSymlinks {
				continue
			}
			target, err := fs.Stat(fullPath)
			if err != nil || !target.IsDir() {
				// 깨진 링크나 파일을 가리키는 링크는 무시
				continue
			}
			if isAncestor(target, ancestors) {
				tree[key] = Tree{}
				continue
			}
			entry = target
		}

		if !entry.IsDir() {
			continue
		}

		subtree, err := b.walk(fs, fullPath, useNameAsKey, append(ancestors, entry))
		if err != nil {
			return nil, err
		}
		tree[key] = subtree
	}

	return tree, nil
}

func isAncestor(info os.FileInfo, ancestors []os.FileInfo) bool {
	for _, ancestor := range ancestors {
		if os.SameFile(info, ancestor) {
			return true
		}
	}
	return false
}
