package cleaner

import (
	"context"

	"github.com/shirou/gopsutil/v4/disk"
)

// SpaceProbe reports the free bytes on the volume holding path
type SpaceProbe func(ctx context.Context, path string) (uint64, error)

// DiskFree is the default SpaceProbe
func DiskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
