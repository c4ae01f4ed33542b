// Package idfinder は届出API（IDfinder）のクライアントを提供する。
// 紛失届・拾得届の一覧取得と作成を行う唯一の経路であり、
// レスポンスのエンベロープ解析とエラーの正規化を担う。
package idfinder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/idfinder/internal/model"
)

const (
	// DefaultListLimit は一覧取得のデフォルト件数。
	DefaultListLimit = 50
	// BaseEnvKey はエンドポイントを設定する環境変数名。
	BaseEnvKey = "IDFINDER_API_BASE"

	resourcePath = "/IDfinder"
)

// 操作名。メトリクスのラベルとログに使用する。
const (
	OpListLost    = "list_lost"
	OpListFound   = "list_found"
	OpCreateLost  = "create_lost"
	OpCreateFound = "create_found"
)

// Recorder はAPI呼び出し結果を記録するインターフェース。
// statusCode はネットワークエラー時に0となる。
type Recorder interface {
	RecordAPIRequest(operation string, statusCode int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAPIRequest(string, int, time.Duration) {}

// Client は届出APIのクライアント。
// 1回の呼び出しにつき1回だけHTTPリクエストを送信し、リトライやキャッシュは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	recorder   Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空でも生成は成功し、各操作の呼び出し時にConfigurationErrorを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		recorder:   nopRecorder{},
	}
}

// WithRecorder はメトリクス記録先を設定する。
func (c *Client) WithRecorder(r Recorder) *Client {
	if r != nil {
		c.recorder = r
	}
	return c
}

// listEnvelope は一覧レスポンスのエンベロープ { ok, items }。
type listEnvelope[T any] struct {
	OK    *bool `json:"ok"`
	Items []T   `json:"items"`
}

// itemEnvelope は作成レスポンスのエンベロープ { ok, item }。
type itemEnvelope[T any] struct {
	OK   *bool `json:"ok"`
	Item *T    `json:"item"`
}

type createLostRequest struct {
	Mode model.RecordKind `json:"mode"`
	model.CreateLostInput
}

type createFoundRequest struct {
	Mode model.RecordKind `json:"mode"`
	model.CreateFoundInput
}

// ListLost は紛失届の一覧を作成日時の降順で返す。
// limitが0以下の場合はDefaultListLimitを使用する。上限はバックエンドに委ねる。
func (c *Client) ListLost(ctx context.Context, limit int) ([]model.LostRecord, error) {
	items, err := list[model.LostRecord](ctx, c, OpListLost, model.KindLost, limit)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(items, func(a, b model.LostRecord) int {
		return b.CreatedDate.Compare(a.CreatedDate)
	})
	return items, nil
}

// ListFound は拾得届の一覧を作成日時の降順で返す。
func (c *Client) ListFound(ctx context.Context, limit int) ([]model.FoundRecord, error) {
	items, err := list[model.FoundRecord](ctx, c, OpListFound, model.KindFound, limit)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(items, func(a, b model.FoundRecord) int {
		return b.CreatedDate.Compare(a.CreatedDate)
	})
	return items, nil
}

// CreateLost は紛失届を作成し、バックエンドが返したレコードをそのまま返す。
func (c *Client) CreateLost(ctx context.Context, input model.CreateLostInput) (*model.LostRecord, error) {
	return create[model.LostRecord](ctx, c, OpCreateLost, createLostRequest{
		Mode:            model.KindLost,
		CreateLostInput: input,
	})
}

// CreateFound は拾得届を作成し、バックエンドが返したレコードをそのまま返す。
func (c *Client) CreateFound(ctx context.Context, input model.CreateFoundInput) (*model.FoundRecord, error) {
	return create[model.FoundRecord](ctx, c, OpCreateFound, createFoundRequest{
		Mode:             model.KindFound,
		CreateFoundInput: input,
	})
}

func list[T any](ctx context.Context, c *Client, op string, kind model.RecordKind, limit int) ([]T, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := url.Values{}
	q.Set("record_type", string(kind))
	q.Set("limit", strconv.Itoa(limit))

	status, body, err := c.do(ctx, op, http.MethodGet, resourcePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// 空ボディはnullとして扱い、itemsも空とみなす
	if body == nil {
		return []T{}, nil
	}

	var env listEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, c.malformed(op, status, fmt.Sprintf("一覧レスポンスの形式が不正です: %v", err))
	}
	if env.OK != nil && !*env.OK {
		return nil, c.malformed(op, status, "届出APIが ok=false を返しました")
	}
	if env.Items == nil {
		return []T{}, nil
	}
	return env.Items, nil
}

func create[T any](ctx context.Context, c *Client, op string, payload any) (*T, error) {
	status, body, err := c.do(ctx, op, http.MethodPost, resourcePath, payload)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, c.malformed(op, status, "作成レスポンスにitemが含まれていません")
	}

	var env itemEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, c.malformed(op, status, fmt.Sprintf("作成レスポンスの形式が不正です: %v", err))
	}
	if env.OK != nil && !*env.OK {
		return nil, c.malformed(op, status, "届出APIが ok=false を返しました")
	}
	if env.Item == nil {
		return nil, c.malformed(op, status, "作成レスポンスにitemが含まれていません")
	}
	return env.Item, nil
}

// do はHTTPリクエストを1回だけ送信し、成功ステータスの場合はレスポンスボディを返す。
// ボディが空の場合はnilを返す。非成功ステータスはRequestErrorに変換する。
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (int, []byte, error) {
	// エンドポイント未設定の場合はネットワーク通信を行わずに失敗する
	if c.baseURL == "" {
		return 0, nil, &ConfigurationError{Key: BaseEnvKey}
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordAPIRequest(op, 0, time.Since(start))
		c.logger.Error("届出APIの呼び出しに失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return 0, nil, fmt.Errorf("届出APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.recorder.RecordAPIRequest(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var body []byte
	if len(bytes.TrimSpace(raw)) > 0 {
		body = raw
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		c.logger.Warn("届出APIがエラーステータスを返しました",
			slog.String("operation", op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", msg),
		)
		return resp.StatusCode, nil, &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}

	if body != nil && !json.Valid(body) {
		return resp.StatusCode, nil, c.malformed(op, resp.StatusCode, "届出APIのレスポンスがJSONではありません")
	}

	return resp.StatusCode, body, nil
}

// errorMessage はエラーレスポンスのボディから error、message の順にメッセージを取り出す。
// 空文字列、null、false、0 は値なしとして次のフィールドへ進む。
// 文字列以外の値はJSONテキストをそのままメッセージとする。
func errorMessage(body []byte) string {
	if body == nil {
		return ""
	}
	var fields struct {
		Error   json.RawMessage `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{fields.Error, fields.Message} {
		if msg := messageText(raw); msg != "" {
			return msg
		}
	}
	return ""
}

func messageText(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
	case float64:
		if val == 0 {
			return ""
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func (c *Client) malformed(op string, status int, msg string) error {
	c.logger.Error("届出APIのレスポンスのパースに失敗しました",
		slog.String("operation", op),
		slog.Int("http_status", status),
		slog.String("error", msg),
	)
	return &RequestError{StatusCode: status, Message: msg}
}
