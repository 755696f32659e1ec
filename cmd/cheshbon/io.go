package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/registrymodel"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func loadSpec(path string) (*specmodel.MappingSpec, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec %s: %w", path, err)
	}
	spec, err := specmodel.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return spec, nil
}

func loadRegistry(path string) (*registrymodel.TransformRegistry, error) {
	if path == "" {
		return nil, nil
	}
	b, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	reg, err := registrymodel.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return reg, nil
}

func loadBindings(path string) (*bindingengine.Bindings, error) {
	if path == "" {
		return nil, nil
	}
	b, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bindings %s: %w", path, err)
	}
	var bindings bindingengine.Bindings
	if err := json.Unmarshal(b, &bindings); err != nil {
		return nil, fmt.Errorf("parse bindings %s: %w", path, err)
	}
	return &bindings, nil
}
