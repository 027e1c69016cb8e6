package kernel

// Mesh is a triangle mesh suitable for export or inspection.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // feature label the triangles belong to
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Triangle returns the three corners of triangle i.
func (m *Mesh) Triangle(i int) [3][3]float32 {
	var tri [3][3]float32
	for j := 0; j < 3; j++ {
		v := m.Indices[i*3+j] * 3
		tri[j] = [3]float32{m.Vertices[v], m.Vertices[v+1], m.Vertices[v+2]}
	}
	return tri
}

// Centroid returns the centroid of triangle i.
func (m *Mesh) Centroid(i int) [3]float64 {
	tri := m.Triangle(i)
	var c [3]float64
	for _, v := range tri {
		c[0] += float64(v[0]) / 3
		c[1] += float64(v[1]) / 3
		c[2] += float64(v[2]) / 3
	}
	return c
}

// AppendTriangle copies triangle i of src into m with fresh indices.
func (m *Mesh) AppendTriangle(src *Mesh, i int) {
	base := uint32(m.VertexCount())
	for j := 0; j < 3; j++ {
		v := src.Indices[i*3+j] * 3
		m.Vertices = append(m.Vertices, src.Vertices[v:v+3]...)
		if len(src.Normals) > int(v+2) {
			m.Normals = append(m.Normals, src.Normals[v:v+3]...)
		}
		m.Indices = append(m.Indices, base+uint32(j))
	}
}
