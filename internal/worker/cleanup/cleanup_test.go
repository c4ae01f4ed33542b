package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 3}}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	before := time.Now()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM sessions") || !strings.Contains(mock.query, "expires_at <") {
		t.Errorf("query = %q", mock.query)
	}
	if len(mock.args) != 1 {
		t.Fatalf("args = %v, want 1 arg", mock.args)
	}
	cutoff, ok := mock.args[0].(time.Time)
	if !ok {
		t.Fatalf("引数はtime.Timeであるべき: %T", mock.args[0])
	}
	if cutoff.Before(before) || cutoff.After(time.Now()) {
		t.Errorf("猶予なしのcutoffは現在時刻であるべき: %v", cutoff)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログがJSONではない: %v", err)
	}
	if entry["deleted_count"] != float64(3) {
		t.Errorf("deleted_count = %v, want 3", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_GracePeriod(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	job.GracePeriod = 24 * time.Hour

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}
	cutoff := mock.args[0].(time.Time)
	if d := time.Since(cutoff); d < 24*time.Hour || d > 25*time.Hour {
		t.Errorf("cutoffは約24時間前であるべき: %v", d)
	}
}

func TestCleanupJob_Run_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockExecutor
	}{
		{"DELETEの失敗", &mockExecutor{err: errors.New("connection refused")}},
		{"削除件数の取得失敗", &mockExecutor{result: &fakeResult{err: errors.New("driver error")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(tt.mock, newTestLogger(&buf))

			if err := job.Run(context.Background()); err == nil {
				t.Fatal("エラーが返されるべき")
			}
			if !strings.Contains(buf.String(), `"level":"ERROR"`) {
				t.Errorf("エラーログが出力されるべき: %s", buf.String())
			}
		})
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mock.callCount() != 1 {
		t.Fatalf("起動直後に1回実行されるべき: calls = %d", mock.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストのキャンセルで停止するべき")
	}
}
