package patch

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/goplus/cppkg/pkgs/version"
)

// Data is the parsed content of a recipe data file:
//
//	patches:
//	  "1.0.0":
//	    package:
//	      - patch_file: patches/0001-fix-install.patch
//	        base_path: source_subfolder
//	    local:
//	      - patch_file: patches/0001-local.patch
//	  "1.0.0.0":
//	    - patch_file: patches/0001-fix-fmt.patch
//	      base_path: source_subfolder
//
// A version mapped directly to a list holds package scope patches.
type Data struct {
	// Sources is carried for conandata.yml compatibility and not used.
	Sources map[string]map[string]any `yaml:"sources,omitempty"`
	Patches map[string]Scoped         `yaml:"patches"`
}

// Scoped holds the operations of one version keyed by scope.
type Scoped map[Scope][]Operation

var operationFields = map[string]bool{
	"patch_file":        true,
	"base_path":         true,
	"strip":             true,
	"patch_description": true,
	"patch_type":        true,
}

// UnmarshalYAML accepts a scope mapping or a bare list of package
// operations.
func (s *Scoped) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		ops, err := decodeOps(node)
		if err != nil {
			return err
		}
		*s = Scoped{Package: ops}
		return nil
	case yaml.MappingNode:
		out := Scoped{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			var scope Scope
			if err := node.Content[i].Decode(&scope); err != nil {
				return err
			}
			ops, err := decodeOps(node.Content[i+1])
			if err != nil {
				return err
			}
			out[scope] = ops
		}
		*s = out
		return nil
	}
	return fmt.Errorf("line %d: patches must be a list or a scope mapping", node.Line)
}

func decodeOps(node *yaml.Node) ([]Operation, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: patch operations must be a list", node.Line)
	}
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i < len(item.Content); i += 2 {
			if key := item.Content[i]; !operationFields[key.Value] {
				return nil, fmt.Errorf("line %d: field %s not found in patch operation", key.Line, key.Value)
			}
		}
	}
	var ops []Operation
	if err := node.Decode(&ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// LoadData parses a recipe data file.
func LoadData(r io.Reader) (*Data, error) {
	var d Data
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return &Data{}, nil
		}
		return nil, fmt.Errorf("parse recipe data: %w", err)
	}
	for ver, scopes := range d.Patches {
		for scope, ops := range scopes {
			if scope != Package && scope != Local {
				return nil, fmt.Errorf("parse recipe data: version %s: unknown patch scope %q", ver, scope)
			}
			for i, op := range ops {
				if op.File == "" {
					return nil, fmt.Errorf("parse recipe data: version %s %s patch #%d: missing patch_file", ver, scope, i)
				}
			}
		}
	}
	return &d, nil
}

// LoadDataFile parses the recipe data file at path. A missing file yields
// empty data.
func LoadDataFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Data{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadData(f)
}

// Records returns the patch records of ver, package scope first.
func (d *Data) Records(ver string) []Record {
	scopes := d.Patches[ver]
	var out []Record
	for _, scope := range []Scope{Package, Local} {
		if ops := scopes[scope]; len(ops) > 0 {
			out = append(out, Record{Version: ver, Scope: scope, Ops: ops})
		}
	}
	return out
}

// Versions returns the versions with patch entries, oldest first.
func (d *Data) Versions() []string {
	vers := make([]string, 0, len(d.Patches))
	for v := range d.Patches {
		vers = append(vers, v)
	}
	sort.Strings(vers)
	version.Sort(vers)
	return vers
}
