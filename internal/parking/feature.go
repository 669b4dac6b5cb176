package parking

import "parking-live/internal/geometry"

// ToFeature：通过几何转换得到渲染要素；状态原样保留
// 约束：geometry.Transform 只产出单一外环，要素保存该环
func (r Record) ToFeature() Feature {
	poly := geometry.Transform(r.Coordinates)
	return Feature{ID: r.ID, Status: r.Status, Ring: poly[0]}
}
