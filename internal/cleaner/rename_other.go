//go:build !darwin && !linux

package cleaner

func renameNoReplace(src, dst string) error {
	return renameIfAbsent(src, dst)
}
