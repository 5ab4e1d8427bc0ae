package agent

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Image is a download agent binary with a known length.
type Image struct {
	r    io.Reader
	c    io.Closer
	size int64
	path string

	closeOnce sync.Once
	closeErr  error
}

// Open opens the agent at path and measures it.
// The caller must Close the returned Image.
//
// Example:
//
//	img, err := agent.Open("MT6735P.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s: %d bytes\n", img.Path(), img.Size())
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat agent: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("agent path %s is a directory", path)
	}

	return &Image{r: f, c: f, size: info.Size(), path: path}, nil
}

// NewImage wraps any reader of exactly size bytes.
// If r implements io.Closer it is closed by Close.
func NewImage(r io.Reader, size int64) *Image {
	img := &Image{r: r, size: size}
	if c, ok := r.(io.Closer); ok {
		img.c = c
	}
	return img
}

// FromBytes builds an in-memory Image.
func FromBytes(data []byte) *Image {
	return NewImage(bytes.NewReader(data), int64(len(data)))
}

// Read reads the next bytes of the agent.
func (img *Image) Read(p []byte) (int, error) {
	return img.r.Read(p)
}

// Size returns the agent length in bytes.
func (img *Image) Size() int64 {
	return img.size
}

// Path returns the file path, or "" for images not backed by a file.
func (img *Image) Path() string {
	return img.path
}

// Close releases the underlying file. Subsequent calls return the first result.
func (img *Image) Close() error {
	img.closeOnce.Do(func() {
		if img.c != nil {
			img.closeErr = img.c.Close()
		}
	})
	return img.closeErr
}
