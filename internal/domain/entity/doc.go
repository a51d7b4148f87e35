// Package entity defines the uniform file and folder nodes every tree source produces.
//
// The node set is closed: Entity is implemented only by *File and *Folder. Sources do not
// subclass anything; each source is a constructor that assembles the same node types:
//   - providers/virtual: flat (relative path, file) lists such as browser directory uploads
//   - providers/filesystem: real directories mounted recursively
//   - providers/stream: streamed picker results with lazily computed lengths
//
// Trees are immutable once NewFolder returns. Folders never reference their parents.
//
// Example Usage:
//
//	root, err := filesystem.NewMounter(fs).Mount(ctx, "/data/photos")
//	for _, f := range root.ListFiles() {
//		fmt.Println(f.Path(), f.ContentType())
//	}
package entity
