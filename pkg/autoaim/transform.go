package autoaim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// All coordinate transforms in this system are rigid (SE(3)); no scaling
// is ever introduced. The five named frames are base, imu, barrel,
// camera, and armor.
const (
	FrameBase   = "base"
	FrameIMU    = "imu"
	FrameBarrel = "barrel"
	FrameCamera = "camera"
	FrameArmor  = "armor"
)

// RotateAroundX returns the 4x4 homogeneous rotation matrix for a rotation
// of angle radians about the x axis.
func RotateAroundX(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity(4)
	m.Set(1, 1, c)
	m.Set(1, 2, -s)
	m.Set(2, 1, s)
	m.Set(2, 2, c)
	return m
}

// RotateAroundY returns the 4x4 homogeneous rotation matrix for a rotation
// of angle radians about the y axis.
func RotateAroundY(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity(4)
	m.Set(0, 0, c)
	m.Set(0, 2, s)
	m.Set(2, 0, -s)
	m.Set(2, 2, c)
	return m
}

// RotateAroundZ returns the 4x4 homogeneous rotation matrix for a rotation
// of angle radians about the z axis.
func RotateAroundZ(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity(4)
	m.Set(0, 0, c)
	m.Set(0, 1, -s)
	m.Set(1, 0, s)
	m.Set(1, 1, c)
	return m
}

// TranslationMatrix returns the 4x4 homogeneous translation matrix for the
// displacement (dx, dy, dz).
func TranslationMatrix(dx, dy, dz float64) *mat.Dense {
	m := identity(4)
	m.Set(0, 3, dx)
	m.Set(1, 3, dy)
	m.Set(2, 3, dz)
	return m
}

// HomogeneousFromRotTrans composes a 3x3 rotation and a 3-vector translation
// into a 4x4 homogeneous transform.
func HomogeneousFromRotTrans(r *mat.Dense, t *mat.VecDense) *mat.Dense {
	m := identity(4)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.At(i, j))
		}
		m.Set(i, 3, t.AtVec(i))
	}
	return m
}

// DecomposeHomogeneous splits a 4x4 rigid transform into its rotation and
// translation parts.
func DecomposeHomogeneous(h *mat.Dense) (r *mat.Dense, t *mat.VecDense) {
	r = mat.NewDense(3, 3, nil)
	t = mat.NewVecDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, h.At(i, j))
		}
		t.SetVec(i, h.At(i, 3))
	}
	return r, t
}

// InvertRigid returns the inverse of a rigid 4x4 transform using the
// closed form R' = R^T, t' = -R^T t (cheaper and more numerically stable
// than a general matrix inverse for SE(3)).
func InvertRigid(h *mat.Dense) *mat.Dense {
	r, t := DecomposeHomogeneous(h)
	var rt mat.Dense
	rt.CloneFrom(r.T())

	var tInv mat.VecDense
	tInv.MulVec(&rt, t)
	tInv.ScaleVec(-1, &tInv)

	return HomogeneousFromRotTrans(&rt, &tInv)
}

// MulHomogeneous composes 4x4 homogeneous transforms left-to-right:
// MulHomogeneous(A, B, C) = A * B * C.
func MulHomogeneous(ms ...*mat.Dense) *mat.Dense {
	if len(ms) == 0 {
		return identity(4)
	}
	result := ms[0]
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(result, m)
		result = &next
	}
	return result
}

// CoordinateManager resolves a rigid transform between any two of the
// system's named frames by BFS over a directed graph of registered edges,
// each carrying a 4x4 transform and its inverse. For the fixed five-frame
// system a straight composition suffices (PoseConverter.Solve uses that
// fast path); the generic resolver covers ad hoc frame queries and keeps
// the two paths checkable against each other.
type CoordinateManager struct {
	nodeIndex map[string]int
	nodeNames []string
	adjacency [][]edge
}

type edge struct {
	to        int
	transform *mat.Dense
}

// NewCoordinateManager creates an empty transform graph.
func NewCoordinateManager() *CoordinateManager {
	return &CoordinateManager{
		nodeIndex: make(map[string]int),
	}
}

func (c *CoordinateManager) nodeID(name string) int {
	if id, ok := c.nodeIndex[name]; ok {
		return id
	}
	id := len(c.nodeNames)
	c.nodeIndex[name] = id
	c.nodeNames = append(c.nodeNames, name)
	c.adjacency = append(c.adjacency, nil)
	return id
}

// RegisterTransform adds an edge from -> to carrying tf, and the reverse
// edge to -> from carrying its rigid inverse.
func (c *CoordinateManager) RegisterTransform(from, to string, tf *mat.Dense) {
	fromID := c.nodeID(from)
	toID := c.nodeID(to)

	c.adjacency[fromID] = append(c.adjacency[fromID], edge{to: toID, transform: tf})
	c.adjacency[toID] = append(c.adjacency[toID], edge{to: fromID, transform: InvertRigid(tf)})
}

// Resolve returns the transform mapping coordinates in `from` to
// coordinates in `to`, composing edges along the shortest registered path.
func (c *CoordinateManager) Resolve(from, to string) (*mat.Dense, error) {
	fromID, ok := c.nodeIndex[from]
	if !ok {
		return nil, fmt.Errorf("coordinate manager: unknown frame %q", from)
	}
	toID, ok := c.nodeIndex[to]
	if !ok {
		return nil, fmt.Errorf("coordinate manager: unknown frame %q", to)
	}
	if fromID == toID {
		return identity(4), nil
	}

	type queueItem struct {
		node int
		tf   *mat.Dense
	}

	visited := make([]bool, len(c.nodeNames))
	visited[fromID] = true
	queue := []queueItem{{node: fromID, tf: identity(4)}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node == toID {
			return cur.tf, nil
		}

		for _, e := range c.adjacency[cur.node] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			var composed mat.Dense
			composed.Mul(e.transform, cur.tf)
			queue = append(queue, queueItem{node: e.to, tf: &composed})
		}
	}

	return nil, fmt.Errorf("coordinate manager: no path from %q to %q", from, to)
}
