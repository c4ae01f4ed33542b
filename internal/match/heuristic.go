// Package match は新規届出に対する「一致の可能性」を推定するヒューリスティックを提供する。
// 結果はユーザーへのヒント表示にのみ使用し、永続化やステータスの変更は行わない。
package match

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/hitoshi/idfinder/internal/model"
)

// Lister は反対側の届出一覧を取得するインターフェース。
type Lister interface {
	ListLost(ctx context.Context, limit int) ([]model.LostRecord, error)
	ListFound(ctx context.Context, limit int) ([]model.FoundRecord, error)
}

// Result は一致候補の推定結果。
// 紛失届に対する推定では Found、拾得届に対する推定では Lost が設定される。
type Result struct {
	Count int                 `json:"count"`
	Found []model.FoundRecord `json:"found,omitempty"`
	Lost  []model.LostRecord  `json:"lost,omitempty"`
}

// Matcher は一致候補を推定する。
type Matcher struct {
	lister Lister
	limit  int
}

// NewMatcher はMatcherの新しいインスタンスを生成する。
// limitが0以下の場合は一覧取得のデフォルト件数が使われる。
func NewMatcher(lister Lister, limit int) *Matcher {
	return &Matcher{lister: lister, limit: limit}
}

// ForLost は新しい紛失届に対し、未引き取りの拾得届から候補を抽出する。
// 身分証種別が一致し、身分証記載の名前が持ち主の名前を大文字小文字を区別せず含むものが候補となる。
// 持ち主の名前が空白のみの場合は一覧を取得せずに候補0件を返す。
// 一覧取得のエラーはそのまま呼び出し元へ返す。
func (m *Matcher) ForLost(ctx context.Context, lost model.LostRecord) (*Result, error) {
	if isBlank(lost.OwnerName) {
		return &Result{}, nil
	}
	needle := strings.ToLower(lost.OwnerName)

	found, err := m.lister.ListFound(ctx, m.limit)
	if err != nil {
		return nil, err
	}

	candidates := lo.Filter(found, func(r model.FoundRecord, _ int) bool {
		return r.Status == model.FoundStatusUnclaimed &&
			r.IDType == lost.IDType &&
			strings.Contains(strings.ToLower(r.NameOnID), needle)
	})
	return &Result{Count: len(candidates), Found: candidates}, nil
}

// ForFound は新しい拾得届に対し、捜索中の紛失届から候補を抽出する。
// 身分証種別が一致し、持ち主の名前が身分証記載の名前を含むものが候補となる。
func (m *Matcher) ForFound(ctx context.Context, found model.FoundRecord) (*Result, error) {
	if isBlank(found.NameOnID) {
		return &Result{}, nil
	}
	needle := strings.ToLower(found.NameOnID)

	lost, err := m.lister.ListLost(ctx, m.limit)
	if err != nil {
		return nil, err
	}

	candidates := lo.Filter(lost, func(r model.LostRecord, _ int) bool {
		return r.Status == model.LostStatusSearching &&
			r.IDType == found.IDType &&
			strings.Contains(strings.ToLower(r.OwnerName), needle)
	})
	return &Result{Count: len(candidates), Lost: candidates}, nil
}

// isBlank は空白のみの名前を判定する。比較時の名前は空白を含めたまま扱う。
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
