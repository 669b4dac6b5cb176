// 包 parking：车位领域模型，包含库表记录、渲染要素与变更事件信封
package parking

import (
	"errors"
	"strings"

	"github.com/paulmach/orb"
)

// Record：parking_data 表的一行，也是快照与变更事件 new/old 字段的载荷
// 约束：coordinates 为扁平的 (x,y) 交错序列，描述一个无洞的闭合环
type Record struct {
	ID          int64     `json:"id"`
	Status      string    `json:"status"`
	Coordinates []float64 `json:"coordinates"`
}

// Feature：Record 的渲染形态，只保留一个外环
type Feature struct {
	ID     int64
	Status string
	Ring   orb.Ring
}

// Polygon：包装为单环多边形
func (f Feature) Polygon() orb.Polygon { return orb.Polygon{f.Ring} }

// Status：规范化的车位状态
type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
	StatusUnknown  Status = "unknown"
)

// ErrUnknownStatus：状态不在 {free, occupied} 之内
var ErrUnknownStatus = errors.New("unknown parking status")

// 文档注释：解析状态字符串
// 约束：大小写与首尾空白不敏感；其余取值一律返回 StatusUnknown 与 ErrUnknownStatus，不猜测映射（如 "open"）。
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusFree:
		return StatusFree, nil
	case StatusOccupied:
		return StatusOccupied, nil
	}
	return StatusUnknown, ErrUnknownStatus
}
