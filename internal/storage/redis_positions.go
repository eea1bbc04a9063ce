package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/bus-tracking/internal/models"
)

// RedisPositionMirror keeps a read-optimized copy of the latest bus
// positions in Redis GEO structures for fleet-map queries. It is a mirror
// fed from the position stream, not the durable store of record.
type RedisPositionMirror struct {
	client *redis.Client
	key    string
}

func NewRedisPositionMirror(addr, password, key string) *RedisPositionMirror {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisPositionMirror{client: c, key: key}
}

func (r *RedisPositionMirror) Upsert(ctx context.Context, p models.BusPosition) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: p.Loc.Lng,
		Latitude:  p.Loc.Lat,
		Name:      p.BusID,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(p.BusID), map[string]interface{}{
		"nickname": p.Nickname,
		"status":   string(p.Status),
		"updated":  p.UpdatedAt.Format(time.RFC3339),
	}).Err()
}

// Nearby returns up to limit buses within radiusM meters of a point,
// closest first, with status metadata attached when present.
func (r *RedisPositionMirror) Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]models.BusPosition, error) {
	res, err := r.client.GeoRadius(ctx, r.key, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusM, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.BusPosition, 0, len(res))
	for _, g := range res {
		p := models.BusPosition{BusID: g.Name}
		p.Loc.Lat = g.Latitude
		p.Loc.Lng = g.Longitude
		if m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			p.Nickname = m["nickname"]
			p.Status = models.BusStatus(m["status"])
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					p.UpdatedAt = ts
				}
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RedisPositionMirror) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPositionMirror) Close() error { return r.client.Close() }

func metaKey(id string) string { return "bus:meta:" + id }
