// 包 geometry：扁平坐标到多边形环的转换
package geometry

import "github.com/paulmach/orb"

// 文档注释：将扁平坐标序列转换为单环多边形
// 约束：coords[2i], coords[2i+1] 为第 i 个点，顺序保持；不自动闭合，不支持洞。
// 奇数长度时末尾孤立值被静默丢弃（沿用既有行为，调用方可用 Dangling 检测并记录）。
func Transform(coords []float64) orb.Polygon {
	return orb.Polygon{Ring(coords)}
}

// Ring：只构造外环
func Ring(coords []float64) orb.Ring {
	n := len(coords) / 2
	ring := make(orb.Ring, 0, n)
	for i := 0; i+1 < len(coords); i += 2 {
		ring = append(ring, orb.Point{coords[i], coords[i+1]})
	}
	return ring
}

// Dangling：坐标长度为奇数，最后一个值会被丢弃
func Dangling(coords []float64) bool { return len(coords)%2 == 1 }
