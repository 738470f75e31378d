package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
)

const defaultUsageCacheTTL = 10 * time.Second

type cachedUsage struct {
	usedBytes int64
	scannedAt time.Time
}

type Usage struct {
	UploadType  UploadType `json:"uploadType"`
	Root        string     `json:"-"`
	UsedBytes   int64      `json:"usedBytes"`
	UsedHuman   string     `json:"usedHuman"`
	TotalBytes  uint64     `json:"totalBytes,omitempty"`
	FreeBytes   uint64     `json:"freeBytes,omitempty"`
	FreeHuman   string     `json:"freeHuman,omitempty"`
	UsedPercent float64    `json:"usedPercent,omitempty"`
	ScannedAt   time.Time  `json:"scannedAt"`
}

// DiskUsageFunc reports the capacity of the filesystem holding path.
type DiskUsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

type UsageService struct {
	resolver  *Resolver
	fs        afero.Fs
	ttl       time.Duration
	diskUsage DiskUsageFunc

	mu    sync.RWMutex
	cache map[UploadType]cachedUsage
}

func NewUsageService(resolver *Resolver, fs afero.Fs) *UsageService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &UsageService{
		resolver:  resolver,
		fs:        fs,
		ttl:       defaultUsageCacheTTL,
		diskUsage: disk.UsageWithContext,
		cache:     make(map[UploadType]cachedUsage),
	}
}

func (s *UsageService) GetUsage(ctx context.Context, uploadType UploadType) (*Usage, error) {
	root, err := s.resolver.RootFor(uploadType)
	if err != nil {
		return nil, err
	}

	usedBytes, scannedAt, err := s.getUsedBytes(ctx, uploadType, root)
	if err != nil {
		return nil, err
	}

	usage := &Usage{
		UploadType: uploadType,
		Root:       root,
		UsedBytes:  usedBytes,
		UsedHuman:  humanize.Bytes(uint64(usedBytes)),
		ScannedAt:  scannedAt,
	}

	// 디스크 용량 조회 실패는 사용량 응답을 막지 않는다
	if s.diskUsage != nil {
		if stat, err := s.diskUsage(ctx, root); err == nil && stat != nil {
			usage.TotalBytes = stat.Total
			usage.FreeBytes = stat.Free
			usage.FreeHuman = humanize.Bytes(stat.Free)
			usage.UsedPercent = stat.UsedPercent
		}
	}

	return usage, nil
}

func (s *UsageService) Invalidate(uploadTypes ...UploadType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uploadType := range uploadTypes {
		delete(s.cache, NormalizeUploadType(string(uploadType)))
	}
}

func (s *UsageService) getUsedBytes(ctx context.Context, uploadType UploadType, root string) (int64, time.Time, error) {
	key := NormalizeUploadType(string(uploadType))
	now := time.Now()

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && now.Sub(cached.scannedAt) <= s.ttl {
		return cached.usedBytes, cached.scannedAt, nil
	}

	usedBytes, err := s.scanUsage(ctx, root)
	if err != nil {
		return 0, time.Time{}, err
	}
	scannedAt := time.Now()

	s.mu.Lock()
	s.cache[key] = cachedUsage{usedBytes: usedBytes, scannedAt: scannedAt}
	s.mu.Unlock()

	return usedBytes, scannedAt, nil
}

func (s *UsageService) scanUsage(ctx context.Context, root string) (int64, error) {
	var usedBytes int64
	err := afero.Walk(s.fs, root, func(currentPath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsPermission(walkErr) {
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			usedBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan usage of %s: %w", root, err)
	}

	return usedBytes, nil
}
