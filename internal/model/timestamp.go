package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// timestampLayouts は created_date として受け付ける文字列形式。
// タイムゾーンの無い形式はUTCとして解釈する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp はバックエンドが採番する作成日時。
// 受信した値を保持して再エンコード時にそのまま返し、解釈できない値でもデコードは失敗しない。
type Timestamp struct {
	t   time.Time
	raw json.RawMessage
}

// NewTimestamp はtime.TimeからTimestampを生成する。
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// ParseTimestamp は文字列の日時を受け付ける形式のいずれかで解釈する。
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time は解釈した日時を返す。解釈できなかった場合はゼロ値。
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// Valid は日時として解釈できたかを返す。
func (ts Timestamp) Valid() bool {
	return !ts.t.IsZero()
}

// IsZero は値を受信しておらず日時も持たない場合にtrueを返す。
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero() && len(ts.raw) == 0
}

// Compare は日時を比較する。解釈できない値は全ての有効な日時より古いものとして扱う。
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.Valid() && other.Valid():
		return ts.t.Compare(other.t)
	case ts.Valid():
		return 1
	case other.Valid():
		return -1
	}
	return 0
}

// String は受信した値を返す。受信値が無い場合はRFC3339形式。
func (ts Timestamp) String() string {
	if len(ts.raw) > 0 {
		var s string
		if err := json.Unmarshal(ts.raw, &s); err == nil {
			return s
		}
		return string(ts.raw)
	}
	if ts.t.IsZero() {
		return ""
	}
	return ts.t.UTC().Format(time.RFC3339)
}

// UnmarshalJSON は文字列の日時とエポックミリ秒を受け付ける。
// それ以外の値もエラーにせず、未解釈のまま保持する。
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	ts.raw = append(json.RawMessage(nil), data...)

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, ok := ParseTimestamp(s); ok {
			ts.t = t
		}
		return nil
	}
	if ms, err := strconv.ParseFloat(string(data), 64); err == nil {
		ts.t = time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

// MarshalJSON は受信した値をそのまま返す。
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if len(ts.raw) > 0 {
		return ts.raw, nil
	}
	if ts.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.t.UTC().Format(time.RFC3339Nano))
}
