// Package id mints the sortable identifiers used for panels and traces.
//
// Every id is a ULID behind a short kind prefix ("panel_01J...") so ids
// sort by creation time and stay recognizable in logs.
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

// Kind is the prefix naming what an id refers to
type Kind string

const (
	KindPanel Kind = "panel"
	KindTrace Kind = "trace"
	KindSpan  Kind = "span"
)

// Source mints ULIDs that increase strictly within the same millisecond
type Source struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewSource creates a source over entropy. Nil uses crypto/rand.
func NewSource(entropy io.Reader) *Source {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Source{entropy: ulid.Monotonic(entropy, 0), now: time.Now}
}

var (
	shared     *Source
	sharedOnce sync.Once
)

func source() *Source {
	sharedOnce.Do(func() { shared = NewSource(nil) })
	return shared
}

// ULID returns the next raw ULID
func (s *Source) ULID() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

// New returns the next id of kind k
func (s *Source) New(k Kind) string {
	return fmt.Sprintf("%s_%s", k, s.ULID())
}

// New returns a fresh id of kind k from the shared source
func (k Kind) New() string { return source().New(k) }

// Owns reports whether v is a well-formed id of kind k
func (k Kind) Owns(v string) bool {
	rest, ok := strings.CutPrefix(v, string(k)+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// PanelID identifies a panel session
type PanelID string

// TraceID identifies a trace
type TraceID string

func NewPanelID() PanelID { return PanelID(KindPanel.New()) }
func NewTraceID() TraceID { return TraceID(KindTrace.New()) }
func NewSpanID() string   { return KindSpan.New() }

func (v PanelID) String() string { return string(v) }
func (v TraceID) String() string { return string(v) }

// Split separates a prefixed id into its kind and ULID
func Split(v string) (Kind, ulid.ULID, error) {
	i := strings.LastIndexByte(v, '_')
	if i <= 0 {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no kind prefix", v)
	}
	u, err := ulid.ParseStrict(v[i+1:])
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", v, err)
	}
	return Kind(v[:i]), u, nil
}

// Minted returns when a prefixed id was created
func Minted(v string) (time.Time, error) {
	_, u, err := Split(v)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
