package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HeadChunkSize is how much of a file QuickHash reads
const HeadChunkSize = 64 * 1024

// HashFile computes SHA256 hash of a file
func HashFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// QuickHash computes an xxhash digest of the first chunkSize bytes of a file.
// It is only a pre-filter: equal quick hashes must be confirmed with HashFile.
func QuickHash(filepath string, chunkSize int64) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if chunkSize <= 0 {
		chunkSize = HeadChunkSize
	}

	digest := xxhash.New()
	if _, err := io.Copy(digest, io.LimitReader(file, chunkSize)); err != nil {
		return "", err
	}

	return strconv.FormatUint(digest.Sum64(), 16), nil
}
