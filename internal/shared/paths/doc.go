// Package paths provides the string-level path operations shared by every tree source.
//
// All functions treat "/" as the only segment separator. Real OS paths are converted with
// filepath.ToSlash by the filesystem source before they reach this package.
//
// # Operations
//
//	name, err := paths.Basename("/tmp/folder/file.txt")   // "file.txt"
//	dir, err := paths.Dirname("/tmp/folder/file.txt")     // "/tmp/folder"
//	ext := paths.ResolveExtension("scan", "application/pdf", true) // ".pdf"
//
//	// Collision-free destination names
//	name, err := paths.UniqueFilename(fs, "/downloads", "report.pdf", "application/pdf")
//	// "report.pdf", then "report (1).pdf", "report (2).pdf", ...
package paths
