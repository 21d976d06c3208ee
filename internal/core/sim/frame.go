package sim

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/kartking/internal/core/anim"
	"github.com/zeusync/kartking/internal/core/camera"
	"github.com/zeusync/kartking/internal/core/vehicle"
	"github.com/zeusync/kartking/pkg/generic"
)

var digests = generic.NewPool(xxhash.New, (*xxhash.Digest).Reset)

// Mesh kinds carried in frames.
const (
	MeshTerrain  = "terrain"
	MeshVehicle  = "vehicle"
	MeshBoostPad = "boost_pad"
)

// PosedMesh is a mesh placed in the world for one frame.
type PosedMesh struct {
	Name     string     `json:"name,omitempty"`
	Kind     string     `json:"kind"`
	Position mgl64.Vec3 `json:"position"`
	Heading  float64    `json:"heading"`
	Scale    float64    `json:"scale"`
	Size     mgl64.Vec3 `json:"size"`
}

// Frame is everything a renderer needs to draw one tick.
type Frame struct {
	Seq        uint64              `json:"seq"`
	Timestamp  time.Time           `json:"timestamp"`
	DT         time.Duration       `json:"dt"`
	Camera     camera.Pose         `json:"camera"`
	CameraMode string              `json:"camera_mode"`
	Vehicle    *vehicle.Snapshot   `json:"vehicle,omitempty"`
	Meshes     []PosedMesh         `json:"meshes"`
	Animations []anim.ChannelState `json:"animations,omitempty"`
	Digest     uint64              `json:"digest"`
}

// Digest hashes the simulated state of a frame (camera, kart, clip playheads),
// so two runs fed the same input can be compared tick by tick.
func Digest(f Frame) uint64 {
	h := digests.Get()
	defer digests.Put(h)
	var buf [8]byte
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	putVec := func(v mgl64.Vec3) {
		for _, c := range v {
			putFloat(c)
		}
	}

	putVec(f.Camera.Position)
	putVec(f.Camera.LookAt)
	_, _ = h.WriteString(f.CameraMode)
	if v := f.Vehicle; v != nil {
		putVec(v.Position)
		putFloat(v.Heading)
		putFloat(v.Speed)
		putFloat(v.MaxSpeed)
		_, _ = h.WriteString(v.Throttle)
		_, _ = h.WriteString(v.Gear)
	}
	for _, a := range f.Animations {
		_, _ = h.WriteString(a.Name)
		putFloat(a.Time)
		putFloat(a.TimeScale)
	}
	return h.Sum64()
}
