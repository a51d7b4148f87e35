// Package filesystem mounts real directories as entity trees.
//
// This package is organized into:
//   - mount: the recursive Mounter producing *entity.Folder trees
//   - lister: directory listing primitives (per-directory afero reads, or one
//     concurrent fastwalk snapshot of the whole tree)
//   - source: lazy byte-range reads of mounted files through afero
//   - scope: security scope acquisition around a whole mount
//
// A mount:
//   - Acquires the security scope of the root once, before any read
//   - Lists every directory exactly once, depth-first pre-order
//   - Skips symbolic links and special files
//   - Discards the partial tree on the first error
//
// Example Usage:
//
//	m := filesystem.NewMounter(afero.NewOsFs())
//	root, err := m.Mount(ctx, "/home/me/photos")
//	for _, f := range root.ListFiles() { ... }
package filesystem
