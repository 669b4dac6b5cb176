package migrate

import (
	"database/sql"
	"strconv"

	"parking-live/internal/logger"
)

// NotifyChannel：触发器发出 pg_notify 的默认通道名
const NotifyChannel = "parking_changes"

// NotifyPayloadLimit：pg_notify 载荷须小于 8000 字节，超出会让写入事务失败；
// 达到该长度时触发器改发只含 ref 的信封，订阅端回表读取
const NotifyPayloadLimit = 7900

// 背景：首次运行自动创建车位表与变更通知触发器，保障快照与订阅可用
// 约束：使用 IF NOT EXISTS / CREATE OR REPLACE 保持幂等；通知载荷即变更信封 JSON，
// 超过 NotifyPayloadLimit 时 new 置空、old 只保留 id，并附带 ref
func EnsureSchema(db *sql.DB) error {
	for i, s := range statements() {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

func statements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS parking_data (
            id BIGINT PRIMARY KEY,
            status TEXT NOT NULL,
            coordinates DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE OR REPLACE FUNCTION parking_data_notify() RETURNS trigger AS $$
        DECLARE
            rec_new json;
            rec_old json;
            old_ref json;
            rec_id BIGINT;
            payload text;
        BEGIN
            IF TG_OP <> 'DELETE' THEN
                rec_new := json_build_object('id', NEW.id, 'status', NEW.status, 'coordinates', NEW.coordinates);
                rec_id := NEW.id;
            END IF;
            IF TG_OP <> 'INSERT' THEN
                rec_old := json_build_object('id', OLD.id, 'status', OLD.status, 'coordinates', OLD.coordinates);
                old_ref := json_build_object('id', OLD.id);
                rec_id := COALESCE(rec_id, OLD.id);
            END IF;
            payload := json_build_object(
                'event', TG_OP,
                'schema', TG_TABLE_SCHEMA,
                'table', TG_TABLE_NAME,
                'new', rec_new,
                'old', rec_old
            )::text;
            IF octet_length(payload) >= ` + strconv.Itoa(NotifyPayloadLimit) + ` THEN
                payload := json_build_object(
                    'event', TG_OP,
                    'schema', TG_TABLE_SCHEMA,
                    'table', TG_TABLE_NAME,
                    'new', NULL::json,
                    'old', old_ref,
                    'ref', json_build_object('id', rec_id)
                )::text;
            END IF;
            PERFORM pg_notify('` + NotifyChannel + `', payload);
            RETURN NULL;
        END;
        $$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS parking_data_notify_trg ON parking_data`,
		`CREATE TRIGGER parking_data_notify_trg
            AFTER INSERT OR UPDATE OR DELETE ON parking_data
            FOR EACH ROW EXECUTE FUNCTION parking_data_notify()`,
	}
}
