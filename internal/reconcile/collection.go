// 包 reconcile：车位要素的规范集合，按 id 做插入或整体替换
package reconcile

import (
	"parking-live/internal/parking"

	"github.com/paulmach/orb/geojson"
)

// 文档注释：规范要素集合
// 背景：快照播种后仅由引擎事件循环单协程修改，因此不加锁；对外只暴露拷贝。
// 约束：任一时刻每个 id 至多一条要素；顺序为首次出现顺序，仅影响渲染叠放，不影响正确性。
// 没有版本比较，最后应用的更新总是生效（乱序到达时旧数据可能覆盖新数据）；也没有删除路径。
type Collection struct {
	features []parking.Feature
	index    map[int64]int
}

func New() *Collection {
	return &Collection{index: make(map[int64]int)}
}

// 文档注释：按 id 插入或替换
// 返回：true 表示替换了已存在要素（长度不变），false 表示追加（长度 +1）。
func (c *Collection) Upsert(f parking.Feature) bool {
	if i, ok := c.index[f.ID]; ok {
		c.features[i] = f
		return true
	}
	c.index[f.ID] = len(c.features)
	c.features = append(c.features, f)
	return false
}

// Seed：用快照结果重置集合；重复 id 经 Upsert 合并，后者覆盖前者
func (c *Collection) Seed(fs []parking.Feature) {
	c.features = make([]parking.Feature, 0, len(fs))
	c.index = make(map[int64]int, len(fs))
	for _, f := range fs {
		c.Upsert(f)
	}
}

func (c *Collection) Len() int { return len(c.features) }

func (c *Collection) Get(id int64) (parking.Feature, bool) {
	if i, ok := c.index[id]; ok {
		return c.features[i], true
	}
	return parking.Feature{}, false
}

// Features：返回要素切片的拷贝，环仍与集合共享（要素整体替换，不会原地改写环）
func (c *Collection) Features() []parking.Feature {
	out := make([]parking.Feature, len(c.features))
	copy(out, c.features)
	return out
}

// Counts：按规范状态统计
type Counts struct {
	Total    int `json:"total"`
	Free     int `json:"free"`
	Occupied int `json:"occupied"`
	Unknown  int `json:"unknown"`
}

func (c *Collection) Counts() Counts {
	var out Counts
	for _, f := range c.features {
		out.Total++
		st, _ := parking.ParseStatus(f.Status)
		switch st {
		case parking.StatusFree:
			out.Free++
		case parking.StatusOccupied:
			out.Occupied++
		default:
			out.Unknown++
		}
	}
	return out
}

// 文档注释：导出渲染层所需的 GeoJSON FeatureCollection
// 约束：每次调用新建对象，渲染端可自由持有；properties 仅包含 id 与 status。
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range c.features {
		gf := geojson.NewFeature(f.Polygon())
		gf.Properties["id"] = f.ID
		gf.Properties["status"] = f.Status
		fc.Append(gf)
	}
	return fc
}
