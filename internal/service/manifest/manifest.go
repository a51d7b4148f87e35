// Package manifest describes entity trees as JSON, YAML or TOML documents.
package manifest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
)

// Format is a manifest encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat accepts "json", "yaml", "yml" and "toml". The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("unknown manifest format %q", s)
	}
}

// ContentType returns the content type of an encoded manifest.
func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case TOML:
		return "application/toml"
	default:
		return "application/json"
	}
}

// Node describes one entity. Size and ContentType are set for files only.
type Node struct {
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Path        string    `json:"path" yaml:"path" toml:"path"`
	Kind        string    `json:"kind" yaml:"kind" toml:"kind"`
	Modified    time.Time `json:"modified" yaml:"modified" toml:"modified"`
	Size        int64     `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	ContentType string    `json:"content_type,omitempty" yaml:"content_type,omitempty" toml:"content_type,omitempty"`
	Files       int       `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
	Bytes       int64     `json:"bytes,omitempty" yaml:"bytes,omitempty" toml:"bytes,omitempty"`
	Children    []Node    `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// Build describes root and everything below it. Folder nodes carry the number of files
// and bytes beneath them. Unknown file lengths are computed.
func Build(ctx context.Context, root *entity.Folder) (Node, error) {
	return folderNode(ctx, root)
}

func folderNode(ctx context.Context, f *entity.Folder) (Node, error) {
	if err := ctx.Err(); err != nil {
		return Node{}, err
	}
	n := Node{
		Name:     f.Name(),
		Path:     f.Path(),
		Kind:     entity.KindFolder.String(),
		Modified: f.LastModified().UTC(),
	}

	for _, child := range f.ListContent() {
		switch c := child.(type) {
		case *entity.Folder:
			sub, err := folderNode(ctx, c)
			if err != nil {
				return Node{}, err
			}
			n.Files += sub.Files
			n.Bytes += sub.Bytes
			n.Children = append(n.Children, sub)
		case *entity.File:
			size, err := c.Length(ctx)
			if err != nil {
				return Node{}, err
			}
			n.Files++
			n.Bytes += size
			n.Children = append(n.Children, Node{
				Name:        c.Name(),
				Path:        c.Path(),
				Kind:        entity.KindFile.String(),
				Modified:    c.LastModified().UTC(),
				Size:        size,
				ContentType: c.ContentType(),
			})
		}
	}
	return n, nil
}

// Encode serialises n in format f.
func Encode(n Node, f Format) ([]byte, error) {
	switch f {
	case JSON, "":
		return sonic.ConfigStd.MarshalIndent(n, "", "  ")
	case YAML:
		return yaml.Marshal(n)
	case TOML:
		return toml.Marshal(n)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", f)
	}
}

// Decode parses a manifest produced by Encode.
func Decode(data []byte, f Format) (Node, error) {
	var n Node
	var err error
	switch f {
	case JSON, "":
		err = sonic.ConfigStd.Unmarshal(data, &n)
	case YAML:
		err = yaml.Unmarshal(data, &n)
	case TOML:
		err = toml.Unmarshal(data, &n)
	default:
		return n, fmt.Errorf("unknown manifest format %q", f)
	}
	if err != nil {
		return n, fmt.Errorf("decode %s manifest: %w", f, err)
	}
	return n, nil
}
