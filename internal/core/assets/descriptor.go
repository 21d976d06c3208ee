package assets

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/anim"
	"github.com/zeusync/kartking/internal/core/terrain"
)

// VehicleDescriptor is the on-disk form of a kart asset.
type VehicleDescriptor struct {
	Name   string      `yaml:"name"`
	Scale  float64     `yaml:"scale"`
	Wheels []anim.Clip `yaml:"wheels"`
}

// HeightfieldDescriptor is a sampled grid of heights.
type HeightfieldDescriptor struct {
	Width   int        `yaml:"width"`
	Depth   int        `yaml:"depth"`
	Heights []float32  `yaml:"heights"`
	Scale   mgl64.Vec3 `yaml:"scale"`
	Origin  mgl64.Vec3 `yaml:"origin"`
}

// MeshDescriptor is a triangle soup.
type MeshDescriptor struct {
	Triangles []terrain.Triangle `yaml:"triangles"`
	Scale     float64            `yaml:"scale"`
	Offset    mgl64.Vec3         `yaml:"offset"`
}

// TerrainDescriptor is the on-disk form of a track. Exactly one of
// Heightfield and Mesh is set.
type TerrainDescriptor struct {
	Name        string                 `yaml:"name"`
	Scale       float64                `yaml:"scale"`
	Heightfield *HeightfieldDescriptor `yaml:"heightfield"`
	Mesh        *MeshDescriptor        `yaml:"mesh"`
	Clips       []anim.Clip            `yaml:"clips"`
}

func decode[T any](r io.Reader) (*T, error) {
	var out T
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAsset, err)
	}
	return &out, nil
}

func DecodeVehicle(r io.Reader) (*VehicleDescriptor, error) {
	d, err := decode[VehicleDescriptor](r)
	if err != nil {
		return nil, err
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: vehicle name is required", ErrMalformedAsset)
	}
	if d.Scale == 0 {
		d.Scale = 1
	}
	return d, nil
}

func DecodeTerrain(r io.Reader) (*TerrainDescriptor, error) {
	d, err := decode[TerrainDescriptor](r)
	if err != nil {
		return nil, err
	}
	if (d.Heightfield == nil) == (d.Mesh == nil) {
		return nil, fmt.Errorf("%w: terrain needs exactly one of heightfield or mesh", ErrMalformedAsset)
	}
	if d.Scale == 0 {
		d.Scale = 1
	}
	return d, nil
}

// Kind names the terrain variant d describes, using the config kind names.
func (d *TerrainDescriptor) Kind() string {
	if d.Heightfield != nil {
		return config.TerrainHeightfield
	}
	return config.TerrainMesh
}

// Query builds the height query described by d.
func (d *TerrainDescriptor) Query(rayOrigin float64) (terrain.Query, error) {
	if hf := d.Heightfield; hf != nil {
		scale := hf.Scale
		if scale == (mgl64.Vec3{}) {
			scale = mgl64.Vec3{1, 1, 1}
		}
		q, err := terrain.NewHeightfield(hf.Heights, hf.Width, hf.Depth, scale, hf.Origin)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedAsset, err)
		}
		return q, nil
	}
	if d.Mesh == nil || len(d.Mesh.Triangles) == 0 {
		return nil, fmt.Errorf("%w: mesh has no triangles", ErrMalformedAsset)
	}
	return terrain.NewMesh(d.Mesh.Triangles, d.Mesh.Scale, d.Mesh.Offset, rayOrigin), nil
}
