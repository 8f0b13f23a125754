package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

func (z *ZipCreator) WriteZip(ctx context.Context, w io.Writer, entries []port.ZipEntry) error {
	zipWriter := zip.NewWriter(w)

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := addEntryToZip(ctx, zipWriter, entry); err != nil {
			return fmt.Errorf("add %s to zip: %w", entry.Name, err)
		}
	}

	return zipWriter.Close()
}

func addEntryToZip(ctx context.Context, zw *zip.Writer, entry port.ZipEntry) error {
	src, err := entry.Open(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: entry.Modified,
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, src)
	return err
}
