package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 row-major matrix. Vectors are treated as rows, so a
 * transform chain reads left to right: world = scale * translate * rotate.
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief Represents the extents of a 3d object.
 */
type Extents3D struct {
	/** @brief The minimum extents of the object. */
	Min Vec3
	/** @brief The maximum extents of the object. */
	Max Vec3
}

// SimpleVertex is the position/normal vertex layout fed to the box pipeline.
type SimpleVertex struct {
	Position Vec3
	Normal   Vec3
}

// SimpleVertexSize is the packed size of a SimpleVertex in bytes.
const SimpleVertexSize = 24

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []SimpleVertex
	Indices  []uint32
}
