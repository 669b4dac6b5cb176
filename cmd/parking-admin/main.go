// 管理工具：增删查车位记录，写库后由触发器产生变更通知；也可直接向 Redis 频道发布变更信封
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"parking-live/internal/config"
	"parking-live/internal/migrate"
	"parking-live/internal/parking"
	"parking-live/internal/store"
	"parking-live/internal/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const usage = `commands:
  upsert <id> <status> <x,y,x,y,...>
  delete <id>
  list [limit]
  publish <INSERT|UPDATE|DELETE> <id> <status> <x,y,...>   (redis feed)
  quit`

func main() {
	_ = godotenv.Load(".env")
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		fmt.Println("db open error:", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		fmt.Println("schema error:", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	rc := utils.OpenRedisFromEnv()
	channel := feedChannel()
	ctx := context.Background()
	if len(os.Args) > 1 {
		if err := run(ctx, st, rc, channel, os.Args[1:]); err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(usage)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "quit" || parts[0] == "exit" {
			return
		}
		if err := run(ctx, st, rc, channel, parts); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// feedChannel：与服务端共用同一配置，publish 发到服务端订阅的频道
func feedChannel() string { return config.FromEnv().FeedChannel }

var errUsage = errors.New("bad arguments\n" + usage)

func run(ctx context.Context, st *store.Store, rc *redis.Client, channel string, parts []string) error {
	switch parts[0] {
	case "upsert":
		if len(parts) < 4 {
			return errUsage
		}
		r, err := parseRecord(parts[1], parts[2], parts[3])
		if err != nil {
			return err
		}
		if err := st.UpsertRecord(ctx, r); err != nil {
			return err
		}
		fmt.Println("ok")
	case "delete", "del":
		if len(parts) < 2 {
			return errUsage
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return err
		}
		found, err := st.DeleteRecord(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("not found")
			return nil
		}
		fmt.Println("ok")
	case "list":
		limit := 20
		if len(parts) >= 2 {
			if n, e := strconv.Atoi(parts[1]); e == nil && n > 0 {
				limit = n
			}
		}
		recs, err := st.FetchAll(ctx)
		if err != nil {
			return err
		}
		for i, r := range recs {
			if i >= limit {
				break
			}
			fmt.Println(formatRecord(r))
		}
	case "publish":
		if rc == nil {
			return errors.New("redis disabled (REDIS_ENABLE=true)")
		}
		if len(parts) < 5 {
			return errUsage
		}
		ev, err := buildEvent(parts[1], parts[2], parts[3], parts[4])
		if err != nil {
			return err
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		n, err := rc.Publish(ctx, channel, b).Result()
		if err != nil {
			return err
		}
		fmt.Println("ok, receivers:", n)
	default:
		return errUsage
	}
	return nil
}

// parseRecord：坐标以逗号分隔；奇数个坐标原样写入，由读取端按既有规则截断
func parseRecord(idStr, status, coords string) (parking.Record, error) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return parking.Record{}, err
	}
	var xs []float64
	for _, s := range strings.Split(coords, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return parking.Record{}, fmt.Errorf("coordinate %q: %w", s, err)
		}
		xs = append(xs, v)
	}
	if _, err := parking.ParseStatus(status); err != nil {
		fmt.Println("warning: status", status, "is outside {free, occupied}")
	}
	return parking.Record{ID: id, Status: status, Coordinates: xs}, nil
}

func buildEvent(kind, idStr, status, coords string) (parking.ChangeEvent, error) {
	r, err := parseRecord(idStr, status, coords)
	if err != nil {
		return parking.ChangeEvent{}, err
	}
	ev := parking.ChangeEvent{Kind: parking.EventKind(strings.ToUpper(kind)), Schema: "public", Table: "parking_data"}
	switch ev.Kind {
	case parking.EventInsert, parking.EventUpdate:
		ev.New = &r
	case parking.EventDelete:
		ev.Old = &r
	default:
		return ev, parking.ErrUnknownKind
	}
	return ev, nil
}

func formatRecord(r parking.Record) string {
	cs := make([]string, len(r.Coordinates))
	for i, v := range r.Coordinates {
		cs[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf("%d | %s | %s", r.ID, r.Status, strings.Join(cs, ","))
}
