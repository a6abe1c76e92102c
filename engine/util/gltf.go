package util

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ExportMesh is one triangle mesh in world space.
type ExportMesh struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint32
}

// ExportGLB writes meshes into a binary glTF file, one node per mesh. Empty meshes are skipped.
func ExportGLB(filename string, meshes []ExportMesh) error {
	doc := gltf.NewDocument()
	for _, mesh := range meshes {
		if len(mesh.Positions) == 0 || len(mesh.Indices) == 0 {
			continue
		}
		if len(mesh.Normals) != len(mesh.Positions) || len(mesh.UVs) != len(mesh.Positions) {
			return errors.Errorf("failed to export mesh %q: %d positions, %d normals, %d uvs", mesh.Name, len(mesh.Positions), len(mesh.Normals), len(mesh.UVs))
		}
		attributes := map[string]uint32{
			gltf.POSITION:   modeler.WritePosition(doc, mesh.Positions),
			gltf.NORMAL:     modeler.WriteNormal(doc, mesh.Normals),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, mesh.UVs),
		}
		indices := modeler.WriteIndices(doc, mesh.Indices)

		meshIndex := uint32(len(doc.Meshes))
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: mesh.Name,
			Primitives: []*gltf.Primitive{{
				Indices:    gltf.Index(indices),
				Attributes: attributes,
				Mode:       gltf.PrimitiveTriangles,
			}},
		})
		nodeIndex := uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: mesh.Name, Mesh: gltf.Index(meshIndex)})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, nodeIndex)
	}
	if err := gltf.SaveBinary(doc, filename); err != nil {
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	LogIOInfo(fmt.Sprintf("[Export] wrote %d meshes to %s", len(doc.Meshes), filename))
	return nil
}

// LoadGLBMeshes reads back positions and indices of every mesh in a file written by ExportGLB.
func LoadGLBMeshes(filename string) ([]ExportMesh, error) {
	doc, err := gltf.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", filename)
	}
	result := make([]ExportMesh, 0, len(doc.Meshes))
	for _, mesh := range doc.Meshes {
		for _, primitive := range mesh.Primitives {
			if primitive.Mode != gltf.PrimitiveTriangles {
				LogIOError(fmt.Sprintf("[Export] %s: skipping non-triangle primitive", mesh.Name))
				continue
			}
			loaded := ExportMesh{Name: mesh.Name}
			loaded.Positions, err = modeler.ReadPosition(doc, doc.Accessors[primitive.Attributes[gltf.POSITION]], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s: positions", mesh.Name)
			}
			loaded.Normals, err = modeler.ReadNormal(doc, doc.Accessors[primitive.Attributes[gltf.NORMAL]], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s: normals", mesh.Name)
			}
			loaded.UVs, err = modeler.ReadTextureCoord(doc, doc.Accessors[primitive.Attributes[gltf.TEXCOORD_0]], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s: uvs", mesh.Name)
			}
			loaded.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s: indices", mesh.Name)
			}
			result = append(result, loaded)
		}
	}
	return result, nil
}
