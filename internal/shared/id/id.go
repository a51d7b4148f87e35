// Package id generates sortable identifiers for requests and uploads.
//
// IDs are ULIDs: lexicographic order follows creation time, so log lines and stored
// upload records sort chronologically without a separate timestamp. A short prefix
// names the kind of ID (trc_*, spn_*, upl_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID identifies one HTTP request and everything it triggers.
type TraceID string

// SpanID identifies one timed operation within a trace.
type SpanID string

// UploadID identifies one directory upload.
type UploadID string

const (
	TracePrefix  = "trc"
	SpanPrefix   = "spn"
	UploadPrefix = "upl"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source, for
// deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate())
}

func NewTraceID() TraceID   { return TraceID(Default().GenerateWithPrefix(TracePrefix)) }
func NewSpanID() SpanID     { return SpanID(Default().GenerateWithPrefix(SpanPrefix)) }
func NewUploadID() UploadID { return UploadID(Default().GenerateWithPrefix(UploadPrefix)) }

func (id TraceID) String() string  { return string(id) }
func (id SpanID) String() string   { return string(id) }
func (id UploadID) String() string { return string(id) }

// Timestamp extracts the creation time of a generated ID, with or without its prefix.
func Timestamp(s string) (time.Time, error) {
	if _, rest, ok := strings.Cut(s, "_"); ok {
		s = rest
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid reports whether s is a ULID, with or without a prefix.
func IsValid(s string) bool {
	_, err := Timestamp(s)
	return err == nil
}
