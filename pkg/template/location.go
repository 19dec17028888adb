package template

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// Location says where a template file lives.
type Location interface {
	// Kind names the location variant in the locator encoding.
	Kind() string
	// Payload is the kind specific part of the locator encoding.
	Payload() string
	// Describe is a human readable form for logs and errors.
	Describe() string
}

// PackageLocation is implemented by locations inside a template package.
type PackageLocation interface {
	Location
	PackageID() string
}

// PathLocation is a directory on the engine's file system.
type PathLocation struct {
	Dir string
}

func (l PathLocation) Kind() string     { return "path" }
func (l PathLocation) Payload() string  { return l.Dir }
func (l PathLocation) Describe() string { return l.Dir }

// PackagePathLocation is a template package the engine already holds,
// identified by package id, with an optional path inside the package.
type PackagePathLocation struct {
	ID   string
	Path string
}

func (l PackagePathLocation) Kind() string      { return "package" }
func (l PackagePathLocation) PackageID() string { return l.ID }

// Payload escapes the id so that a "/" inside it cannot move into Path.
func (l PackagePathLocation) Payload() string {
	return url.PathEscape(l.ID) + "/" + l.Path
}

func (l PackagePathLocation) Describe() string {
	if l.Path == "" {
		return "package " + l.ID
	}
	return "package " + l.ID + ":" + path.Clean(l.Path)
}

// LocationDecoder rebuilds a Location from its payload.
type LocationDecoder func(payload string) (Location, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]LocationDecoder{
		"path": func(p string) (Location, error) {
			return PathLocation{Dir: p}, nil
		},
		"package": func(p string) (Location, error) {
			escaped, rest, _ := strings.Cut(p, "/")
			id, err := url.PathUnescape(escaped)
			if err != nil {
				return nil, fmt.Errorf("package location id: %w", err)
			}
			if id == "" {
				return nil, fmt.Errorf("package location without id")
			}
			return PackagePathLocation{ID: id, Path: rest}, nil
		},
	}
)

// RegisterLocation makes a custom location kind decodable from locators.
func RegisterLocation(kind string, dec LocationDecoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[kind] = dec
}

func decodeLocation(kind, payload string) (Location, error) {
	decodersMu.RLock()
	dec, ok := decoders[kind]
	decodersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown location kind %q", kind)
	}
	return dec(payload)
}

// IsPackageBased reports whether loc lives inside a template package.
func IsPackageBased(loc Location) bool {
	_, ok := loc.(PackageLocation)
	return ok
}
