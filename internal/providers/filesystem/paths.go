package filesystem

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
)

// resolvePath returns the absolute, cleaned form of dir. Paths on the OS filesystem are
// made absolute against the working directory; other filesystems are rooted at "/".
func resolvePath(fsys afero.Fs, dir string) (string, error) {
	if dir == "" {
		return "", errs.InvalidPath(dir, "empty directory path")
	}
	if isOsFs(fsys) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", errs.InvalidPath(dir, err.Error())
		}
		return abs, nil
	}
	if !filepath.IsAbs(dir) {
		dir = string(filepath.Separator) + dir
	}
	return filepath.Clean(dir), nil
}

func isOsFs(fsys afero.Fs) bool {
	_, ok := fsys.(*afero.OsFs)
	return ok
}
