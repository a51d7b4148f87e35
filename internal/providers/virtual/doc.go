/*
Package virtual builds folder trees from flat lists of files that carry only a
relative path, such as a browser directory upload.

# Overview

Entries are grouped by their first path segment, recursively, until every entry
is a leaf file. Grouping works on offsets into the split path of each entry, so
the input list is never modified and sibling groups share no state.

	entries := []virtual.Entry{
		{RelativePath: "a.txt", File: a},
		{RelativePath: "sub/b.txt", File: b},
		{RelativePath: "sub/c.txt", File: c},
	}
	root, err := virtual.Build(entries, virtual.Options{})

# Root Path

The root path is derived from the first entry's real path with its
root-relative suffix removed, so "sub/b.txt" read from "/tmp/folder/sub/b.txt"
yields a root at "/tmp/folder". Files without a real path get a synthetic
"virtual://<id>/<name>" root.

# Errors

Empty, absolute, or parent-referencing paths fail with *errs.InvalidPathError.
A file and a folder (or two files) with the same name at one level fail with
*errs.NameCollisionError.
*/
package virtual
