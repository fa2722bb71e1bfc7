// Package cache は絞り込み用選択肢（国一覧と価格帯）のキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/wanderlust/internal/model"
)

// Redis上のキー。
const (
	FacetKey           = "wanderlust:facets:v1"
	FacetGenerationKey = "wanderlust:facets:gen"
)

// FacetCache は全件から計算した選択肢のキャッシュ。
//
// Getはキャッシュが無い場合にnilと現在の世代を返す。Setは渡された世代が
// 現在の世代と一致する場合のみ書き込む。Invalidateは世代を進めるため、
// 更新前に読み始めた計算結果が更新後に書き戻されることはない。
type FacetCache interface {
	Get(ctx context.Context) (*model.Facets, int64, error)
	Set(ctx context.Context, generation int64, f model.Facets) error
	Invalidate(ctx context.Context) error
}

// setIfGeneration は世代が一致する場合のみ値をTTL付きで書き込む。
var setIfGeneration = redis.NewScript(`
local cur = redis.call("GET", KEYS[1]) or "0"
if cur ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisFacetCache はRedisを使ったFacetCache。
type RedisFacetCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisFacetCache はRedisFacetCacheを生成する。ttlが0以下なら5分。
func NewRedisFacetCache(rdb *redis.Client, ttl time.Duration) *RedisFacetCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisFacetCache{rdb: rdb, ttl: ttl}
}

type facetPayload struct {
	Countries []string `json:"countries"`
	MinPrice  float64  `json:"min_price"`
	MaxPrice  float64  `json:"max_price"`
}

// Get はキャッシュ済みの選択肢と現在の世代を返す。
func (c *RedisFacetCache) Get(ctx context.Context) (*model.Facets, int64, error) {
	vals, err := c.rdb.MGet(ctx, FacetGenerationKey, FacetKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read facets from redis: %w", err)
	}
	gen, err := parseGeneration(vals[0])
	if err != nil {
		return nil, 0, err
	}
	raw, ok := vals[1].(string)
	if !ok {
		return nil, gen, nil
	}
	var p facetPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, gen, fmt.Errorf("failed to decode cached facets: %w", err)
	}
	return &model.Facets{
		Countries:  p.Countries,
		PriceRange: model.PriceRange{Min: p.MinPrice, Max: p.MaxPrice},
	}, gen, nil
}

func parseGeneration(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid facet generation %q: %w", s, err)
	}
	return gen, nil
}

// Set は世代が変わっていなければ選択肢をTTL付きで保存する。
// 世代が進んでいた場合は何もしない。
func (c *RedisFacetCache) Set(ctx context.Context, generation int64, f model.Facets) error {
	bs, err := json.Marshal(facetPayload{
		Countries: f.Countries,
		MinPrice:  f.PriceRange.Min,
		MaxPrice:  f.PriceRange.Max,
	})
	if err != nil {
		return fmt.Errorf("failed to encode facets: %w", err)
	}
	err = setIfGeneration.Run(ctx, c.rdb,
		[]string{FacetGenerationKey, FacetKey},
		strconv.FormatInt(generation, 10), bs, c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to write facets to redis: %w", err)
	}
	return nil
}

// Invalidate は世代を進めてキャッシュを破棄する。
func (c *RedisFacetCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, FacetGenerationKey)
		pipe.Del(ctx, FacetKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate facets: %w", err)
	}
	return nil
}

// Nop はRedisが設定されていない場合のFacetCache。常にキャッシュ無しとして振る舞う。
type Nop struct{}

func (Nop) Get(context.Context) (*model.Facets, int64, error) { return nil, 0, nil }
func (Nop) Set(context.Context, int64, model.Facets) error    { return nil }
func (Nop) Invalidate(context.Context) error                  { return nil }

// NewRedisClient はREDIS_URL形式のURLからクライアントを生成し、疎通確認を行う。
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

var (
	_ FacetCache = (*RedisFacetCache)(nil)
	_ FacetCache = Nop{}
)
