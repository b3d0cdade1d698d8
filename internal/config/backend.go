package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ConfigBackend abstracts persistent config storage. Keys are dotted
// "section.name" paths.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// fileBackend stores config as TOML tables, one table per key section.
type fileBackend struct {
	path string
}

func newFileBackend(path string) *fileBackend {
	return &fileBackend{path: path}
}

func (f *fileBackend) load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	m := map[string]any{}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return m, nil
}

func (f *fileBackend) save(m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

func splitKey(key string) (section, name string) {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

func (f *fileBackend) lookup(key string) (any, bool, error) {
	m, err := f.load()
	if err != nil {
		return nil, false, err
	}
	section, name := splitKey(key)
	table := m
	if section != "" {
		t, ok := m[section].(map[string]any)
		if !ok {
			return nil, false, nil
		}
		table = t
	}
	v, ok := table[name]
	return v, ok, nil
}

func (f *fileBackend) GetString(key string) (string, bool, error) {
	v, ok, err := f.lookup(key)
	if err != nil || !ok {
		return "", false, err
	}
	switch x := v.(type) {
	case string:
		return x, true, nil
	case int64:
		return strconv.FormatInt(x, 10), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	default:
		return "", false, fmt.Errorf("key %s: unsupported value type %T", key, v)
	}
}

func (f *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok, err := f.lookup(key)
	if err != nil || !ok {
		return 0, false, err
	}
	switch x := v.(type) {
	case int64:
		return int(x), true, nil
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return 0, false, fmt.Errorf("key %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("key %s: expected integer, got %T", key, v)
	}
}

func (f *fileBackend) set(key string, val any) error {
	m, err := f.load()
	if err != nil {
		return err
	}
	section, name := splitKey(key)
	if section == "" {
		m[name] = val
		return f.save(m)
	}
	table, ok := m[section].(map[string]any)
	if !ok {
		table = map[string]any{}
		m[section] = table
	}
	table[name] = val
	return f.save(m)
}

func (f *fileBackend) SetString(key, val string) error { return f.set(key, val) }

func (f *fileBackend) SetInt(key string, val int) error { return f.set(key, int64(val)) }

func (f *fileBackend) Delete(key string) error {
	m, err := f.load()
	if err != nil {
		return err
	}
	section, name := splitKey(key)
	if section == "" {
		delete(m, name)
	} else if table, ok := m[section].(map[string]any); ok {
		delete(table, name)
		if len(table) == 0 {
			delete(m, section)
		}
	}
	return f.save(m)
}
