package patch

import (
	"io/fs"
	"sort"
)

// memTree implements Tree in memory for testing.
type memTree struct {
	files  map[string]string
	writes []string
}

func newMemTree(files map[string]string) *memTree {
	return &memTree{files: files}
}

func (m *memTree) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return []byte(data), nil
}

func (m *memTree) WriteFile(name string, data []byte) error {
	m.files[name] = string(data)
	m.writes = append(m.writes, name)
	return nil
}

func (m *memTree) Remove(name string) error {
	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

func (m *memTree) names() []string {
	var out []string
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
