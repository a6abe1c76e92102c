package voxel

// Chunk is a fixed-size dense grid of voxel values. The storage order is fixed by its Shape.
type Chunk[V any] struct {
	shape Shape
	data  []V
}

func NewChunk[V any](shape Shape, fill V) *Chunk[V] {
	c := &Chunk[V]{
		shape: shape,
		data:  make([]V, shape.Len()),
	}
	for i := range c.data {
		c.data[i] = fill
	}
	return c
}

func ChunkFromFunc[V any](shape Shape, fn func(p Point3) V) *Chunk[V] {
	c := &Chunk[V]{
		shape: shape,
		data:  make([]V, shape.Len()),
	}
	for i := range c.data {
		c.data[i] = fn(shape.Delinearize(i))
	}
	return c
}

func (c *Chunk[V]) Shape() Shape {
	return c.shape
}

func (c *Chunk[V]) Len() int {
	return len(c.data)
}

func (c *Chunk[V]) Size() Point3 {
	return c.shape.Size()
}

func (c *Chunk[V]) Contains(x, y, z int32) bool {
	size := c.shape.Size()
	return x >= 0 && x < int32(size[0]) && y >= 0 && y < int32(size[1]) && z >= 0 && z < int32(size[2])
}

func (c *Chunk[V]) Get(p Point3) *V {
	return &c.data[c.shape.Offset(p)]
}

func (c *Chunk[V]) Set(p Point3, v V) {
	c.data[c.shape.Offset(p)] = v
}

// GetLocal returns nil for coordinates outside the chunk.
func (c *Chunk[V]) GetLocal(x, y, z int32) *V {
	if !c.Contains(x, y, z) {
		return nil
	}
	return c.Get(Point3{uint16(x), uint16(y), uint16(z)})
}

// Each visits every cell in storage order.
func (c *Chunk[V]) Each(fn func(p Point3, v *V)) {
	for i := range c.data {
		fn(c.shape.Delinearize(i), &c.data[i])
	}
}

// Data exposes the backing storage in storage order.
func (c *Chunk[V]) Data() []V {
	return c.data
}

func (c *Chunk[V]) Fill(v V) {
	for i := range c.data {
		c.data[i] = v
	}
}
