package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/semmidev/ledgervault/internal/domain"
)

// GzipArchiver produces single-entry gzip archives. The entry name is
// recorded in the gzip header so common tools recover the original
// filename, and the payload is the raw source bytes at capture time.
type GzipArchiver struct{}

func NewGzip() *GzipArchiver {
	return &GzipArchiver{}
}

// Build compresses the file at sourcePath into a fresh archive at
// destPath. The source is never mutated or deleted. A partially written
// destination is removed when the build fails.
func (g *GzipArchiver) Build(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrSourceMissing, sourcePath)
		}
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}

	gzipWriter, err := gzip.NewWriterLevel(destFile, gzip.BestCompression)
	if err != nil {
		destFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	gzipWriter.Name = domain.ArchiveEntryName
	gzipWriter.ModTime = info.ModTime()

	if _, err := io.Copy(gzipWriter, sourceFile); err != nil {
		gzipWriter.Close()
		destFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to compress: %w", err)
	}

	// Close errors carry deferred flush failures (disk full), so a
	// truncated archive is never reported as success.
	if err := gzipWriter.Close(); err != nil {
		destFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := destFile.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}

// Extract decompresses the single entry of the archive at sourcePath into
// destPath.
func (g *GzipArchiver) Extract(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}

	if _, err := io.Copy(destFile, gzipReader); err != nil {
		destFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to decompress: %w", err)
	}

	if err := destFile.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to finalize dest file: %w", err)
	}

	return nil
}
