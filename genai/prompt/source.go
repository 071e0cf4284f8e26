package prompt

import (
	"context"
	"embed"
	"log"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

//go:embed template/*.vm data/*.txt
var embedded embed.FS

// Source resolves prompt fragments from an optional data directory, falling
// back to the embedded defaults.
type Source struct {
	fs  afs.Service
	dir string
}

// Text returns the named fragment (for example "data/py_instructions.txt").
// A specific fragment always wins over a default one. Lookup order: dir/name,
// embedded name, dir/default_<suffix>, embedded default_<suffix>. Missing
// fragments yield "".
func (s *Source) Text(ctx context.Context, name string) string {
	if text, ok := s.lookup(ctx, name); ok {
		return text
	}
	if fallback := defaultName(name); fallback != name {
		if text, ok := s.lookup(ctx, fallback); ok {
			return text
		}
	}
	log.Printf("prompt fragment %s not found", name)
	return ""
}

// lookup reads name from the data dir, then from the embedded defaults.
func (s *Source) lookup(ctx context.Context, name string) (string, bool) {
	if s.dir != "" {
		if text, ok := s.download(ctx, url.Join(s.dir, name)); ok {
			return text, true
		}
	}
	if data, err := embedded.ReadFile(name); err == nil {
		return string(data), true
	}
	return "", false
}

func (s *Source) download(ctx context.Context, location string) (string, bool) {
	if ok, _ := s.fs.Exists(ctx, location); !ok {
		return "", false
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		log.Printf("failed to read prompt fragment %s: %v", location, err)
		return "", false
	}
	return string(data), true
}

// defaultName maps "data/py_instructions.txt" to "data/default_instructions.txt".
func defaultName(name string) string {
	dir, base := path.Split(name)
	if !strings.HasPrefix(dir, "data") {
		return name
	}
	idx := strings.Index(base, "_")
	if idx == -1 {
		return name
	}
	return dir + "default" + base[idx:]
}

// NewSource creates a source over dir; an empty dir uses embedded fragments only.
func NewSource(fs afs.Service, dir string) *Source {
	if fs == nil {
		fs = afs.New()
	}
	if dir != "" && url.Scheme(dir, "") == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	return &Source{fs: fs, dir: dir}
}
