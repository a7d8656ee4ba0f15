package upscaler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"go_upscaler/srruntime"
)

// Descriptor resolves to a model definition. It is called once per Upscaler.
// Any function with this signature works as a factory.
type Descriptor func(ctx context.Context) (srruntime.Definition, error)

// DefaultModel is the built-in model used when Options.Model is nil.
const DefaultModel = "bicubic-2x"

var builtins = map[string]srruntime.Definition{
	"bicubic-2x":  {Name: "bicubic-2x", Runtime: srruntime.RuntimeInterpolation, Scale: 2, Kernel: srruntime.KernelCatmullRom},
	"bicubic-3x":  {Name: "bicubic-3x", Runtime: srruntime.RuntimeInterpolation, Scale: 3, Kernel: srruntime.KernelCatmullRom},
	"bicubic-4x":  {Name: "bicubic-4x", Runtime: srruntime.RuntimeInterpolation, Scale: 4, Kernel: srruntime.KernelCatmullRom},
	"bilinear-2x": {Name: "bilinear-2x", Runtime: srruntime.RuntimeInterpolation, Scale: 2, Kernel: srruntime.KernelBilinear},
	"nearest-2x":  {Name: "nearest-2x", Runtime: srruntime.RuntimeInterpolation, Scale: 2, Kernel: srruntime.KernelNearest},
}

// BuiltinNames returns the names accepted by Builtin, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinDefinition returns the definition of a built-in model.
func BuiltinDefinition(name string) (srruntime.Definition, bool) {
	def, ok := builtins[name]
	return def, ok
}

// Builtin returns a descriptor for one of the built-in models.
func Builtin(name string) Descriptor {
	return func(context.Context) (srruntime.Definition, error) {
		def, ok := builtins[name]
		if !ok {
			return srruntime.Definition{}, fmt.Errorf("unknown built-in model %q (available: %s)",
				name, strings.Join(BuiltinNames(), ", "))
		}
		return def, nil
	}
}

// FromDefinition returns a descriptor for a fixed definition.
func FromDefinition(def srruntime.Definition) Descriptor {
	return func(context.Context) (srruntime.Definition, error) {
		return def, nil
	}
}

// FromYAML returns a descriptor that parses a YAML model definition.
// Unknown keys are rejected.
func FromYAML(data []byte) Descriptor {
	return func(context.Context) (srruntime.Definition, error) {
		return parseDefinition(data)
	}
}

// FromYAMLFile returns a descriptor that reads a YAML model definition. A
// relative path inside the file is resolved against the file's directory.
func FromYAMLFile(path string) Descriptor {
	return func(context.Context) (srruntime.Definition, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return srruntime.Definition{}, fmt.Errorf("read model definition: %w", err)
		}
		def, err := parseDefinition(data)
		if err != nil {
			return srruntime.Definition{}, fmt.Errorf("%s: %w", path, err)
		}
		if def.Path != "" && !filepath.IsAbs(def.Path) {
			def.Path = filepath.Join(filepath.Dir(path), def.Path)
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return def, nil
	}
}

func parseDefinition(data []byte) (srruntime.Definition, error) {
	var def srruntime.Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return srruntime.Definition{}, fmt.Errorf("parse model definition: %w", err)
	}
	return def, nil
}

// Resolve maps a model reference onto a descriptor. ref may be a built-in
// name, a path to a YAML file, or the name of <modelsDir>/<ref>.yaml.
func Resolve(ref, modelsDir string) Descriptor {
	if ref == "" {
		return Builtin(DefaultModel)
	}
	if _, ok := builtins[ref]; ok {
		return Builtin(ref)
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if ext == ".yaml" || ext == ".yml" {
		return FromYAMLFile(ref)
	}

	for _, candidate := range []string{ref + ".yaml", ref + ".yml"} {
		path := filepath.Join(modelsDir, candidate)
		if _, err := os.Stat(path); err == nil {
			return FromYAMLFile(path)
		}
	}

	return func(context.Context) (srruntime.Definition, error) {
		return srruntime.Definition{}, fmt.Errorf("model %q is not built in and no definition was found in %s: %w",
			ref, modelsDir, os.ErrNotExist)
	}
}

// ListDefinitions loads every *.yaml and *.yml definition in dir. Files that
// fail to parse are reported in the returned error but do not stop the scan.
func ListDefinitions(dir string) ([]srruntime.Definition, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var defs []srruntime.Definition
	var errs []error
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		def, err := FromYAMLFile(filepath.Join(dir, e.Name()))(context.Background())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, errors.Join(errs...)
}
