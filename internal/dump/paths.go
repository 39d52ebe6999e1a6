package dump

import (
	"path/filepath"
	"strings"
)

const dumpSuffix = ".json.gz"

// IndexPath returns the index file path derived from a dump file path.
func IndexPath(dumpPath string) string {
	return trimDumpSuffix(dumpPath) + ".index"
}

// CachePath returns the entity cache path derived from a dump file path.
func CachePath(dumpPath string) string {
	return trimDumpSuffix(dumpPath) + ".cache"
}

func trimDumpSuffix(path string) string {
	if strings.HasSuffix(path, dumpSuffix) {
		return strings.TrimSuffix(path, dumpSuffix)
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}
