package parking

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventKind：变更事件类型，与 TG_OP 取值一致
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	EventAll    EventKind = "*"
)

// ChangeEvent：单条记录的变更通知
// 约束：INSERT/UPDATE 携带 New；DELETE 仅携带 Old，New 为空。
// 载荷超出 pg_notify 上限时触发器只发 Ref（记录 id），由订阅端回表读取后补齐 New。
type ChangeEvent struct {
	Kind   EventKind  `json:"event"`
	Schema string     `json:"schema"`
	Table  string     `json:"table"`
	New    *Record    `json:"new"`
	Old    *Record    `json:"old,omitempty"`
	Ref    *RecordRef `json:"ref,omitempty"`
}

// RecordRef：只携带主键的记录引用
type RecordRef struct {
	ID int64 `json:"id"`
}

// NeedsFetch：INSERT/UPDATE 只有引用、需要回表读取
func (e ChangeEvent) NeedsFetch() bool {
	return (e.Kind == EventInsert || e.Kind == EventUpdate) && e.New == nil && e.Ref != nil
}

var (
	ErrEmptyPayload = errors.New("empty change payload")
	ErrUnknownKind  = errors.New("unknown change event kind")
	ErrMissingNew   = errors.New("change event without new record")
)

// 文档注释：解码变更信封
// 背景：Postgres 触发器与 Redis 发布端使用同一 JSON 信封。
// 约束：事件类型大小写不敏感；INSERT/UPDATE 缺少 new 且无 ref 视为非法；DELETE 允许 new 为 null。
func DecodeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if len(payload) == 0 {
		return ev, ErrEmptyPayload
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	ev.Kind = EventKind(strings.ToUpper(string(ev.Kind)))
	switch ev.Kind {
	case EventInsert, EventUpdate:
		if ev.New == nil && ev.Ref == nil {
			return ev, ErrMissingNew
		}
	case EventDelete:
	default:
		return ev, ErrUnknownKind
	}
	return ev, nil
}

// Label：用作指标标签的取值；集合外的类型一律归为 "unknown"，避免标签基数失控
func (k EventKind) Label() string {
	switch k {
	case EventInsert, EventUpdate, EventDelete:
		return string(k)
	}
	return "unknown"
}

// Matches：按 schema/table 过滤；空值或 "*" 表示不限
func (e ChangeEvent) Matches(schema, table string) bool {
	if schema != "" && schema != "*" && !strings.EqualFold(e.Schema, schema) {
		return false
	}
	if table != "" && table != "*" && !strings.EqualFold(e.Table, table) {
		return false
	}
	return true
}
