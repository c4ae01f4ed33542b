// Package registry は届出APIクライアント、クエリキャッシュ、一致推定を組み合わせ、
// 画面から利用される届出の一覧取得と登録を提供する。
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/hitoshi/idfinder/internal/match"
	"github.com/hitoshi/idfinder/internal/model"
	"github.com/hitoshi/idfinder/internal/querycache"
)

// ErrMatchUnavailable は届出の作成には成功したが、一致推定の一覧取得に失敗した場合のエラー。
// Report は有効な届出を含んだ状態で返される。
var ErrMatchUnavailable = errors.New("一致候補を取得できませんでした")

// Client は届出APIのクライアントインターフェース。
type Client interface {
	ListLost(ctx context.Context, limit int) ([]model.LostRecord, error)
	ListFound(ctx context.Context, limit int) ([]model.FoundRecord, error)
	CreateLost(ctx context.Context, input model.CreateLostInput) (*model.LostRecord, error)
	CreateFound(ctx context.Context, input model.CreateFoundInput) (*model.FoundRecord, error)
}

// Recorder は登録件数と一致候補数を記録するインターフェース。
type Recorder interface {
	RecordReport(kind string)
	RecordMatchCandidates(kind string, count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordReport(string)               {}
func (nopRecorder) RecordMatchCandidates(string, int) {}

// Listings は紛失届と拾得届をまとめた一覧。Items は作成日時の降順。
type Listings struct {
	Items      []model.Listing
	LostCount  int
	FoundCount int
}

// Report は届出の登録結果。Matches は一致推定に失敗した場合nilとなる。
type Report struct {
	Listing model.Listing
	Matches *match.Result
}

// Service は届出の一覧取得と登録を行う。
type Service struct {
	client   Client
	cache    *querycache.Cache
	matcher  *match.Matcher
	limit    int
	logger   *slog.Logger
	recorder Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// 一致推定はキャッシュを経由せず、常にAPIから最新の一覧を取得する。
func NewService(client Client, cache *querycache.Cache, logger *slog.Logger, limit int) *Service {
	return &Service{
		client:   client,
		cache:    cache,
		matcher:  match.NewMatcher(client, limit),
		limit:    limit,
		logger:   logger,
		recorder: nopRecorder{},
	}
}

// WithRecorder はメトリクス記録先を設定する。
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// ListLost は紛失届の一覧を返す。結果はキャッシュされる。
func (s *Service) ListLost(ctx context.Context) ([]model.LostRecord, error) {
	key := querycache.Key{Scope: querycache.ScopeLostRecords, Limit: s.limit}
	items, err := querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]model.LostRecord, error) {
		return s.client.ListLost(ctx, s.limit)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// ListFound は拾得届の一覧を返す。結果はキャッシュされる。
func (s *Service) ListFound(ctx context.Context) ([]model.FoundRecord, error) {
	key := querycache.Key{Scope: querycache.ScopeFoundRecords, Limit: s.limit}
	items, err := querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]model.FoundRecord, error) {
		return s.client.ListFound(ctx, s.limit)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// Listings は紛失届と拾得届を並行して取得し、作成日時の降順で1つの一覧にまとめる。
// どちらか一方でも取得に失敗した場合はエラーを返す。
func (s *Service) Listings(ctx context.Context) (*Listings, error) {
	var (
		lost  []model.LostRecord
		found []model.FoundRecord
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		lost, err = s.ListLost(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		found, err = s.ListFound(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	items := make([]model.Listing, 0, len(lost)+len(found))
	for _, r := range lost {
		items = append(items, model.NewLostListing(r))
	}
	for _, r := range found {
		items = append(items, model.NewFoundListing(r))
	}
	slices.SortStableFunc(items, func(a, b model.Listing) int {
		return b.CreatedDate().Compare(a.CreatedDate())
	})

	return &Listings{
		Items:      items,
		LostCount:  len(lost),
		FoundCount: len(found),
	}, nil
}

// ReportLost は紛失届を登録し、紛失届一覧のキャッシュを無効化した上で
// 未引き取りの拾得届から一致候補を推定する。
func (s *Service) ReportLost(ctx context.Context, input model.CreateLostInput) (*Report, error) {
	rec, err := s.client.CreateLost(ctx, input)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, querycache.ScopeLostRecords)
	s.recorder.RecordReport(string(model.KindLost))

	report := &Report{Listing: model.NewLostListing(*rec)}
	res, err := s.matcher.ForLost(ctx, *rec)
	if err != nil {
		s.logger.Warn("一致候補の推定に失敗しました",
			slog.String("kind", string(model.KindLost)),
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("%w: %w", ErrMatchUnavailable, err)
	}
	s.recorder.RecordMatchCandidates(string(model.KindLost), res.Count)
	report.Matches = res
	return report, nil
}

// ReportFound は拾得届を登録し、拾得届一覧のキャッシュを無効化した上で
// 捜索中の紛失届から一致候補を推定する。
func (s *Service) ReportFound(ctx context.Context, input model.CreateFoundInput) (*Report, error) {
	rec, err := s.client.CreateFound(ctx, input)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, querycache.ScopeFoundRecords)
	s.recorder.RecordReport(string(model.KindFound))

	report := &Report{Listing: model.NewFoundListing(*rec)}
	res, err := s.matcher.ForFound(ctx, *rec)
	if err != nil {
		s.logger.Warn("一致候補の推定に失敗しました",
			slog.String("kind", string(model.KindFound)),
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("%w: %w", ErrMatchUnavailable, err)
	}
	s.recorder.RecordMatchCandidates(string(model.KindFound), res.Count)
	report.Matches = res
	return report, nil
}
