// Package querycache は届出一覧の取得結果をクエリ単位で保持するキャッシュを提供する。
// プロセス全体のシングルトンは持たず、ハンドルを依存性として受け渡す。
package querycache

import (
	"context"
	"fmt"
	"strings"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// クエリのスコープ。作成成功後はスコープ単位で無効化する。
const (
	ScopeLostRecords  = "lostRecords"
	ScopeFoundRecords = "foundRecords"
)

// DefaultCleanupInterval は期限切れエントリを掃除する間隔。
const DefaultCleanupInterval = 10 * time.Minute

// Key はクエリの識別子。
type Key struct {
	Scope string
	Limit int
}

// String はキャッシュ内部で使うキー文字列を返す。
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Scope, k.Limit)
}

// Recorder はキャッシュのヒット/ミスを記録するインターフェース。
type Recorder interface {
	RecordCacheHit(scope string)
	RecordCacheMiss(scope string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string)  {}
func (nopRecorder) RecordCacheMiss(string) {}

// Cache はgo-cacheを用いたクエリキャッシュ。
// ttlが0以下の場合は無効となり、常にミスとして振る舞う。
type Cache struct {
	cache    *goCache.Cache
	ttl      time.Duration
	recorder Recorder
}

// New はCacheの新しいインスタンスを生成する。
func New(ttl time.Duration) *Cache {
	return &Cache{
		cache:    goCache.New(ttl, DefaultCleanupInterval),
		ttl:      ttl,
		recorder: nopRecorder{},
	}
}

// WithRecorder はメトリクス記録先を設定する。
func (c *Cache) WithRecorder(r Recorder) *Cache {
	if r != nil {
		c.recorder = r
	}
	return c
}

// Enabled はキャッシュが有効かどうかを返す。
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// Get はキーに対応する値を返す。
func (c *Cache) Get(_ context.Context, key Key) (any, bool) {
	if !c.Enabled() {
		return nil, false
	}
	return c.cache.Get(key.String())
}

// Set はキーに値を保存する。
func (c *Cache) Set(_ context.Context, key Key, value any) {
	if !c.Enabled() {
		return
	}
	c.cache.Set(key.String(), value, c.ttl)
}

// Invalidate はスコープに属する全てのキーを削除する。
func (c *Cache) Invalidate(_ context.Context, scope string) {
	prefix := scope + ":"
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

// Flush は全てのエントリを削除する。
func (c *Cache) Flush(_ context.Context) {
	c.cache.Flush()
}

// Fetch はキャッシュに値があればそれを返し、無ければloadを呼び出して結果を保存する。
// loadがエラーを返した場合は何も保存しない。
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(ctx, key); ok {
		if typed, ok := v.(T); ok {
			c.recorder.RecordCacheHit(key.Scope)
			return typed, nil
		}
	}
	c.recorder.RecordCacheMiss(key.Scope)

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(ctx, key, v)
	return v, nil
}
