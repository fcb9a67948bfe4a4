// Package images maps script image names to files under the configured
// image directory.
package images

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// An Image is a named frame the projector can display. Name is the
// script token, Path the resolved location on disk.
type Image struct {
	Name string
	Path string
}

type NotFoundError struct {
	Name string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("images: %q not found at %s", e.Name, e.Path)
}

var extensions = map[string]bool{
	".png":  true,
	".bmp":  true,
	".jpg":  true,
	".jpeg": true,
}

// A Resolver confines image lookups to a single directory. Slicers emit
// names without an extension for some profiles; anything without a known
// image extension gets ".png" appended.
type Resolver struct {
	Dir string
}

// Ref returns the Image a name refers to without touching disk. The
// path never escapes Dir.
func (r *Resolver) Ref(name string) Image {
	n := name
	if !extensions[strings.ToLower(filepath.Ext(n))] {
		n += ".png"
	}
	return Image{
		Name: name,
		Path: filepath.Join(r.Dir, filepath.FromSlash(path.Clean("/"+n))),
	}
}

// Resolve returns the Image a name refers to, failing with
// *NotFoundError if the file does not exist.
func (r *Resolver) Resolve(name string) (Image, error) {
	img := r.Ref(name)
	fi, err := os.Stat(img.Path)
	if err != nil || fi.IsDir() {
		return Image{}, &NotFoundError{Name: name, Path: img.Path}
	}
	return img, nil
}
