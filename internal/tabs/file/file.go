// Package file reads tabs from a local file: either a JSON array of
// {"url","title"} objects or one URL per line, optionally followed by a tab
// and the title. Blank lines and lines starting with # are skipped.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/tabs"
)

func init() {
	tabs.Register("file", func(cfg tabs.Config) (tabs.Source, error) {
		if cfg.Path == "" {
			return nil, errors.New("file source: path is required")
		}
		return New(cfg.Path), nil
	})
}

// Source reads tabs from a path; "-" means stdin.
type Source struct {
	path  string
	stdin io.Reader
}

// New creates a Source for path.
func New(path string) *Source {
	return &Source{path: path, stdin: os.Stdin}
}

// List reads and parses the file on every call.
func (s *Source) List(ctx context.Context) ([]model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		data []byte
		err  error
	)
	if s.path == "-" {
		data, err = io.ReadAll(s.stdin)
	} else {
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return Parse(data)
}

// Parse decodes tabs from a JSON array or a line list.
func Parse(data []byte) ([]model.Tab, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []model.Tab
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("file source: decode json: %w", err)
		}
		return list, nil
	}

	var list []model.Tab
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, title, _ := strings.Cut(line, "\t")
		list = append(list, model.Tab{URL: strings.TrimSpace(u), Title: strings.TrimSpace(title)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return list, nil
}
