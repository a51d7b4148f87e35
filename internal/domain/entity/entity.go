package entity

import "time"

// Kind distinguishes the two node variants.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Entity is a node of a tree: either a *File or a *Folder.
type Entity interface {
	Name() string
	Path() string
	LastModified() time.Time
	Kind() Kind

	// sealed keeps the variant set closed to this package.
	sealed()
}

var (
	_ Entity = (*File)(nil)
	_ Entity = (*Folder)(nil)
)
