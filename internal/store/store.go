// 包 store: 提供 parking_data 表的数据访问层，供快照加载与管理工具使用
package store

import (
	"context"
	"database/sql"
	"errors"
	"parking-live/internal/logger"
	"parking-live/internal/parking"

	"github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

var ErrBadRecord = errors.New("bad parking record")

// 文档注释：读取全部车位记录（快照）
// 背景：一次性批量读取，按 id 排序以便渲染叠放稳定；坐标列为 double precision[]。
// 异常：查询或扫描失败直接返回，不做重试。
func (s *Store) FetchAll(ctx context.Context) ([]parking.Record, error) {
	logger.L().Debug("db_fetch_all_begin")
	rows, err := s.db.QueryContext(ctx, "SELECT id, status, coordinates FROM parking_data ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []parking.Record
	for rows.Next() {
		var r parking.Record
		var coords pq.Float64Array
		if err := rows.Scan(&r.ID, &r.Status, &coords); err != nil {
			return nil, err
		}
		r.Coordinates = []float64(coords)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_fetch_all_done", "count", len(out))
	return out, nil
}

// FetchRecord: 按 id 读取单条记录；不存在时 found 为 false
func (s *Store) FetchRecord(ctx context.Context, id int64) (parking.Record, bool, error) {
	var r parking.Record
	var coords pq.Float64Array
	err := s.db.QueryRowContext(ctx, "SELECT id, status, coordinates FROM parking_data WHERE id=$1", id).
		Scan(&r.ID, &r.Status, &coords)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	r.Coordinates = []float64(coords)
	return r, true, nil
}

// UpsertRecord: 写入或整体覆盖一条记录；触发器负责发出变更通知
func (s *Store) UpsertRecord(ctx context.Context, r parking.Record) error {
	if r.ID <= 0 {
		return ErrBadRecord
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO parking_data(id, status, coordinates, updated_at)
        VALUES($1, $2, $3, now())
        ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, coordinates=EXCLUDED.coordinates, updated_at=now()`,
		r.ID, r.Status, pq.Array(r.Coordinates),
	)
	return err
}

// DeleteRecord: 删除记录；返回是否存在
func (s *Store) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM parking_data WHERE id=$1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
