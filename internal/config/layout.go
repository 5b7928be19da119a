package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/scene"
)

// Where the initial layout came from.
const (
	LayoutFromStore   = "store"
	LayoutFromFile    = "file"
	LayoutFromDefault = "default"
)

type layoutFile struct {
	Objects []scene.Object `yaml:"objects"`
}

// DefaultLayout is the built-in fruit scene.
func DefaultLayout() []scene.Object {
	return []scene.Object{
		{ID: "banana", Asset: "/Banana.png", Position: geom.Point{X: 100, Y: 100}},
		{ID: "strawberry", Asset: "/Strawberry.png", Position: geom.Point{X: 300, Y: 150}},
		{ID: "watermelon", Asset: "/Watermelon.png", Position: geom.Point{X: 200, Y: 300}},
	}
}

// LoadLayoutFile reads a YAML layout:
//
//	objects:
//	  - id: banana
//	    asset: /Banana.png
//	    position: {x: 100, y: 100}
func LoadLayoutFile(path string) ([]scene.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse layout file %s: %w", path, err)
	}
	if err := ValidateLayout(lf.Objects); err != nil {
		return nil, fmt.Errorf("layout file %s: %w", path, err)
	}
	return lf.Objects, nil
}

// ValidateLayout checks ids are present and unique.
func ValidateLayout(objects []scene.Object) error {
	_, err := scene.NewRegistry(objects)
	return err
}

// ResolveLayout picks the initial objects: stored objects when there are any,
// else the layout file when one is configured, else DefaultLayout. The second
// return value names the source.
func ResolveLayout(stored []scene.Object, path string) ([]scene.Object, string, error) {
	if len(stored) > 0 {
		if err := ValidateLayout(stored); err != nil {
			return nil, "", fmt.Errorf("stored layout: %w", err)
		}
		return stored, LayoutFromStore, nil
	}

	if path != "" {
		objects, err := LoadLayoutFile(path)
		if err != nil {
			return nil, "", err
		}
		if len(objects) == 0 {
			return nil, "", errors.New("layout file has no objects")
		}
		return objects, LayoutFromFile, nil
	}

	return DefaultLayout(), LayoutFromDefault, nil
}
