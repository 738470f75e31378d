package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
)

func newTestUsageService(t *testing.T) (*UsageService, map[string]string) {
	t.Helper()
	resolver, mapping := newTestResolver(t, "avatars")
	service := NewUsageService(resolver, afero.NewOsFs())
	service.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Free: 400, UsedPercent: 60}, nil
	}
	return service, mapping
}

func TestUsageService_GetUsageCountsRegularFiles(t *testing.T) {
	service, mapping := newTestUsageService(t)
	root := mapping["avatars"]
	writeFixture(t, filepath.Join(root, "a.bin"), "12345")
	writeFixture(t, filepath.Join(root, "nested", "deep", "b.bin"), "123")

	usage, err := service.GetUsage(context.Background(), "avatars")
	if err != nil {
		t.Fatalf("GetUsage returned error: %v", err)
	}
	if usage.UsedBytes != 8 {
		t.Fatalf("expected 8 used bytes, got %d", usage.UsedBytes)
	}
	if usage.UsedHuman != "8 B" {
		t.Fatalf("expected human size 8 B, got %q", usage.UsedHuman)
	}
	if usage.TotalBytes != 1000 || usage.FreeBytes != 400 || usage.UsedPercent != 60 {
		t.Fatalf("unexpected disk stats: %+v", usage)
	}
	if usage.Root != root {
		t.Fatalf("expected root %q, got %q", root, usage.Root)
	}
}

func TestUsageService_CachesUntilInvalidated(t *testing.T) {
	service, mapping := newTestUsageService(t)
	service.ttl = time.Hour
	root := mapping["avatars"]
	writeFixture(t, filepath.Join(root, "a.bin"), "12345")

	first, err := service.GetUsage(context.Background(), "avatars")
	if err != nil {
		t.Fatalf("GetUsage returned error: %v", err)
	}

	writeFixture(t, filepath.Join(root, "b.bin"), "12345")

	cached, err := service.GetUsage(context.Background(), "avatars")
	if err != nil {
		t.Fatalf("GetUsage returned error: %v", err)
	}
	if cached.UsedBytes != first.UsedBytes {
		t.Fatalf("expected cached value %d, got %d", first.UsedBytes, cached.UsedBytes)
	}

	service.Invalidate("Avatars")

	fresh, err := service.GetUsage(context.Background(), "avatars")
	if err != nil {
		t.Fatalf("GetUsage returned error: %v", err)
	}
	if fresh.UsedBytes != 10 {
		t.Fatalf("expected 10 bytes after invalidation, got %d", fresh.UsedBytes)
	}
}

func TestUsageService_DiskUsageFailureIsIgnored(t *testing.T) {
	service, mapping := newTestUsageService(t)
	service.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return nil, errors.New("statfs failed")
	}
	writeFixture(t, filepath.Join(mapping["avatars"], "a.bin"), "1")

	usage, err := service.GetUsage(context.Background(), "avatars")
	if err != nil {
		t.Fatalf("GetUsage returned error: %v", err)
	}
	if usage.UsedBytes != 1 || usage.TotalBytes != 0 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestUsageService_UnknownUploadType(t *testing.T) {
	service, _ := newTestUsageService(t)

	_, err := service.GetUsage(context.Background(), "videos")
	if !errors.Is(err, ErrUnknownUploadType) {
		t.Fatalf("expected ErrUnknownUploadType, got %v", err)
	}
}

func TestUsageService_MissingRoot(t *testing.T) {
	resolver, mapping := newTestResolver(t, "avatars")
	if err := os.RemoveAll(mapping["avatars"]); err != nil {
		t.Fatalf("failed to remove root: %v", err)
	}
	service := NewUsageService(resolver, nil)
	service.diskUsage = nil

	if _, err := service.GetUsage(context.Background(), "avatars"); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestUsageService_CanceledContext(t *testing.T) {
	service, mapping := newTestUsageService(t)
	writeFixture(t, filepath.Join(mapping["avatars"], "a.bin"), "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := service.GetUsage(ctx, "avatars"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
