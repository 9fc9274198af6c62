package source

import (
	"context"
	"fmt"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExts are the file extensions LoadImage can decode
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports if the file name has an extension LoadImage can decode
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// LoadImage decodes an image file into a BGR Mat.  EXIF orientation is
// applied so the Mat is upright as the photo was taken
func LoadImage(path string) (gocv.Mat, error) {

	img, err := decodeImage(path)

	if err != nil {
		return gocv.NewMat(), err
	}

	mat, err := gocv.ImageToMatRGB(img)

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("error converting image %s to mat: %w", path, err)
	}

	return mat, nil
}

// decodeImage opens the file with the registered decoders and falls back to
// the libwebp decoder for webp files the pure Go decoder can not read
func decodeImage(path string) (image.Image, error) {

	img, err := imaging.Open(path, imaging.AutoOrientation(true))

	if err == nil {
		return img, nil
	}

	if strings.ToLower(filepath.Ext(path)) != ".webp" {
		return nil, fmt.Errorf("error decoding image %s: %w", path, err)
	}

	f, ferr := os.Open(path)

	if ferr != nil {
		return nil, fmt.Errorf("error opening image %s: %w", path, ferr)
	}

	defer f.Close()

	img, err = webp.Decode(f)

	if err != nil {
		return nil, fmt.Errorf("error decoding webp image %s: %w", path, err)
	}

	return img, nil
}

// Dir feeds image files from a directory, such as snapshots written by an
// external capture tool, to a Slot
type Dir struct {
	path    string
	watcher *fsnotify.Watcher
	log     *slog.Logger
}

// NewDir watches the directory for new or rewritten image files
func NewDir(path string, logger *slog.Logger) (*Dir, error) {

	info, err := os.Stat(path)

	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	watcher, err := fsnotify.NewWatcher()

	if err != nil {
		return nil, fmt.Errorf("error creating file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("error watching directory %s: %w", path, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dir{
		path:    path,
		watcher: watcher,
		log:     logger,
	}, nil
}

// Files returns the image files currently in the directory sorted by name
func (d *Dir) Files() ([]string, error) {
	return ListImages(d.path)
}

// ListImages returns the image files in the directory sorted by name
func ListImages(path string) ([]string, error) {

	entries, err := os.ReadDir(path)

	if err != nil {
		return nil, fmt.Errorf("error listing directory: %w", err)
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}

		files = append(files, filepath.Join(path, e.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// Run publishes every image file created or written in the directory to the
// slot until the context is cancelled or the watcher fails.  Files that can
// not be decoded, such as ones still being written, are logged and skipped.
// The slot is closed on return
func (d *Dir) Run(ctx context.Context, slot *Slot) error {

	defer slot.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if !IsImage(event.Name) {
				continue
			}

			mat, err := LoadImage(event.Name)

			if err != nil {
				d.log.Warn("source: skipping image", "file", event.Name, "err", err)
				continue
			}

			if !slot.Publish(mat) {
				return nil
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}

			return fmt.Errorf("error watching directory %s: %w", d.path, err)
		}
	}
}

// Close stops watching the directory
func (d *Dir) Close() error {
	return d.watcher.Close()
}
