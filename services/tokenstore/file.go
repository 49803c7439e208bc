package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

// FileTier keeps values in a small JSON document on disk (0600). Used as the CLI's durable tier.
type FileTier struct {
	path   string
	logger core.Logger
	mu     sync.Mutex
}

var _ Tier = (*FileTier)(nil)

func NewFileTier(path string, logger core.Logger) *FileTier {
	if logger == nil {
		logger = core.NopLogger
	}
	return &FileTier{path: path, logger: logger}
}

func (t *FileTier) Get(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.load()[key]
	return v, ok
}

func (t *FileTier) Set(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := t.load()
	values[key] = value
	t.save(values)
}

func (t *FileTier) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := t.load()
	if _, ok := values[key]; !ok {
		return
	}
	delete(values, key)
	t.save(values)
}

func (t *FileTier) load() map[string]string {
	values := make(map[string]string)
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("reading credentials file", errors.Wrap(err, t.path))
		}
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		t.logger.Warn("decoding credentials file", errors.Wrap(err, t.path))
		return make(map[string]string)
	}
	return values
}

func (t *FileTier) save(values map[string]string) {
	data, err := json.Marshal(values)
	if err != nil {
		t.logger.Error("encoding credentials file", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		t.logger.Error("creating credentials dir", errors.Wrap(err, t.path))
		return
	}
	if err := os.WriteFile(t.path, data, 0o600); err != nil {
		t.logger.Error("writing credentials file", errors.Wrap(err, t.path))
	}
}
