//go:build !unix

package badger

import "io/fs"

func diskUsage(info fs.FileInfo) int64 {
	return info.Size()
}
