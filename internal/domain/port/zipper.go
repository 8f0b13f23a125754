package port

import (
	"context"
	"io"
	"time"
)

type ZipEntry struct {
	Name     string
	Modified time.Time
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

// Zipper streams entries into w in slice order, opening one entry at a time.
type Zipper interface {
	WriteZip(ctx context.Context, w io.Writer, entries []ZipEntry) error
}
