package paths

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/mimetypes"
)

// Separator is the segment separator for every path handled by this package.
const Separator = "/"

// maxProbes bounds UniqueFilename on pathological directories.
const maxProbes = 10000

// numbered matches a trailing " (N)" copy counter on a file stem.
var numbered = regexp.MustCompile(` \(\d+\)$`)

// compoundExtensions are kept whole when numbering copies.
var compoundExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst"}

// Basename returns the last segment of p. Trailing separators are ignored.
func Basename(p string) (string, error) {
	if p == "" {
		return "", errs.InvalidPath(p, "empty path")
	}
	return path.Base(p), nil
}

// Dirname returns p with its last segment removed.
func Dirname(p string) (string, error) {
	if p == "" {
		return "", errs.InvalidPath(p, "empty path")
	}
	trimmed := strings.TrimRight(p, Separator)
	if trimmed == "" {
		return Separator, nil
	}
	return path.Dir(trimmed), nil
}

// CheckName reports an *errs.InvalidPathError unless name is a single segment that
// stays in its parent directory when joined.
func CheckName(name string) error {
	switch {
	case name == "":
		return errs.InvalidPath(name, "empty name")
	case name == "." || name == "..":
		return errs.InvalidPath(name, "relative segment "+name)
	case strings.ContainsAny(name, Separator+"\\\x00"):
		return errs.InvalidPath(name, "name is not a single segment")
	}
	return nil
}

// Segments splits p into its non-empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, Separator)
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Join appends name to parent with exactly one separator between them.
func Join(parent, name string) string {
	switch {
	case parent == "":
		return name
	case strings.HasSuffix(parent, Separator):
		return parent + name
	default:
		return parent + Separator + name
	}
}

// Ext returns the extension of name including the dot. Compound archive extensions such as
// ".tar.gz" are returned whole; dot files without another dot have no extension.
func Ext(name string) string {
	lower := strings.ToLower(name)
	for _, ce := range compoundExtensions {
		if strings.HasSuffix(lower, ce) && len(name) > len(ce) {
			return name[len(name)-len(ce):]
		}
	}
	ext := path.Ext(name)
	if ext == name || ext == "." {
		return ""
	}
	return ext
}

// ResolveExtension returns the extension of name, or the one derived from contentType when
// name has none. The leading dot is kept only when withDot is set.
func ResolveExtension(name, contentType string, withDot bool) string {
	ext := path.Ext(name)
	if ext == name || ext == "." {
		ext = ""
	}
	if ext == "" {
		ext = mimetypes.ExtensionByType(contentType)
	}
	if !withDot {
		ext = strings.TrimPrefix(ext, ".")
	}
	return ext
}

// UniqueFilename returns a name for desired that does not yet exist in dir. A missing
// extension is appended from contentType first. On collision " (1)", " (2)", ... is inserted
// before the extension; an existing counter on desired is replaced, never doubled.
func UniqueFilename(fsys afero.Fs, dir, desired, contentType string) (string, error) {
	if desired == "" {
		return "", errs.InvalidPath(desired, "empty file name")
	}

	ext := Ext(desired)
	if ext == "" {
		ext = ResolveExtension(desired, contentType, true)
		desired += ext
	}

	exists, err := afero.Exists(fsys, Join(dir, desired))
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", desired, err)
	}
	if !exists {
		return desired, nil
	}

	stem := numbered.ReplaceAllString(strings.TrimSuffix(desired, ext), "")
	for i := 1; i <= maxProbes; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		exists, err := afero.Exists(fsys, Join(dir, candidate))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s after %d attempts", desired, dir, maxProbes)
}
