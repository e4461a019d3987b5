package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

const stillExt = ".png"

// CombineStills stitches the numbered stills in dir into a video file at
// dst, in index order, at the given frame rate. Returns the number of
// frames written. Stills that fail to decode are skipped.
func CombineStills(dir, dst string, fps float64) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read stills directory %v: %w", dir, err)
	}

	var indices []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, stillExt) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, stillExt))
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	if len(indices) == 0 {
		return 0, fmt.Errorf("no stills found in %v", dir)
	}

	var writer *gocv.VideoWriter
	count := 0
	for _, idx := range indices {
		img := gocv.IMRead(filepath.Join(dir, strconv.Itoa(idx)+stillExt), gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			continue
		}
		if writer == nil {
			writer, err = gocv.VideoWriterFile(dst, "mp4v", fps, img.Cols(), img.Rows(), true)
			if err != nil {
				img.Close()
				return 0, fmt.Errorf("failed to open video writer for %v: %w", dst, err)
			}
		}
		err := writer.Write(img)
		img.Close()
		if err != nil {
			writer.Close()
			return count, fmt.Errorf("failed to write frame %d to %v: %w", idx, dst, err)
		}
		count++
	}

	if writer == nil {
		return 0, fmt.Errorf("no decodable stills in %v", dir)
	}
	if err := writer.Close(); err != nil {
		return count, fmt.Errorf("failed to finalize %v: %w", dst, err)
	}
	return count, nil
}
