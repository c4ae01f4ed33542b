package match

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/idfinder/internal/idfinder"
	"github.com/hitoshi/idfinder/internal/model"
)

// fakeLister はテスト用のLister実装。
type fakeLister struct {
	lost       []model.LostRecord
	found      []model.FoundRecord
	err        error
	lostCalls  int
	foundCalls int
	lastLimit  int
}

func (f *fakeLister) ListLost(_ context.Context, limit int) ([]model.LostRecord, error) {
	f.lostCalls++
	f.lastLimit = limit
	return f.lost, f.err
}

func (f *fakeLister) ListFound(_ context.Context, limit int) ([]model.FoundRecord, error) {
	f.foundCalls++
	f.lastLimit = limit
	return f.found, f.err
}

func TestMatcher_ForLost_SubstringCaseInsensitive(t *testing.T) {
	lister := &fakeLister{found: []model.FoundRecord{
		{ID: "f1", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusUnclaimed},
	}}
	m := NewMatcher(lister, 50)

	res, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: "John", IDType: model.IDTypePassport})
	if err != nil {
		t.Fatalf("ForLost がエラーを返した: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Count)
	}
	if len(res.Found) != 1 || res.Found[0].ID != "f1" {
		t.Errorf("候補 = %v", res.Found)
	}
	if lister.lastLimit != 50 {
		t.Errorf("limit = %d, want 50", lister.lastLimit)
	}

	res, err = m.ForLost(context.Background(), model.LostRecord{OwnerName: "jOHN sm", IDType: model.IDTypePassport})
	if err != nil {
		t.Fatalf("ForLost がエラーを返した: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("大文字小文字を区別しないはず: Count = %d", res.Count)
	}
}

func TestMatcher_ForLost_DifferentIDTypeDropsMatch(t *testing.T) {
	lister := &fakeLister{found: []model.FoundRecord{
		{ID: "f1", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusUnclaimed},
	}}
	m := NewMatcher(lister, 0)

	res, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: "John", IDType: model.IDTypeDriversLicense})
	if err != nil {
		t.Fatalf("ForLost がエラーを返した: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("Count = %d, want 0", res.Count)
	}
}

func TestMatcher_ForLost_ExcludesNonUnclaimed(t *testing.T) {
	lister := &fakeLister{found: []model.FoundRecord{
		{ID: "f1", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusReturned},
		{ID: "f2", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusMatched},
		{ID: "f3", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusUnclaimed},
	}}
	m := NewMatcher(lister, 0)

	res, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: "John Smith", IDType: model.IDTypePassport})
	if err != nil {
		t.Fatalf("ForLost がエラーを返した: %v", err)
	}
	if res.Count != 1 || res.Found[0].ID != "f3" {
		t.Errorf("unclaimed のみが候補となるべき: %v", res.Found)
	}
}

func TestMatcher_ForFound_ReverseDirection(t *testing.T) {
	lister := &fakeLister{lost: []model.LostRecord{
		{ID: "l1", OwnerName: "Jane Doe", IDType: model.IDTypeStudentID, Status: model.LostStatusSearching},
		{ID: "l2", OwnerName: "Jane Doe", IDType: model.IDTypeStudentID, Status: model.LostStatusRecovered},
		{ID: "l3", OwnerName: "Jane Doe", IDType: model.IDTypeWorkID, Status: model.LostStatusSearching},
		{ID: "l4", OwnerName: "Bob", IDType: model.IDTypeStudentID, Status: model.LostStatusSearching},
	}}
	m := NewMatcher(lister, 0)

	res, err := m.ForFound(context.Background(), model.FoundRecord{NameOnID: "jane", IDType: model.IDTypeStudentID})
	if err != nil {
		t.Fatalf("ForFound がエラーを返した: %v", err)
	}
	if res.Count != 1 || res.Lost[0].ID != "l1" {
		t.Errorf("候補 = %v", res.Lost)
	}
	if lister.lostCalls != 1 || lister.foundCalls != 0 {
		t.Errorf("紛失届一覧のみ取得されるべき: lost=%d found=%d", lister.lostCalls, lister.foundCalls)
	}
}

func TestMatcher_BlankNameSkipsFetch(t *testing.T) {
	lister := &fakeLister{found: []model.FoundRecord{
		{ID: "f1", NameOnID: "John", IDType: model.IDTypeOther, Status: model.FoundStatusUnclaimed},
	}}
	m := NewMatcher(lister, 0)

	for _, name := range []string{"", "   ", "\t\n"} {
		res, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: name, IDType: model.IDTypeOther})
		if err != nil {
			t.Fatalf("ForLost がエラーを返した: %v", err)
		}
		if res.Count != 0 {
			t.Errorf("空白の名前 %q で Count = %d, want 0", name, res.Count)
		}
		res, err = m.ForFound(context.Background(), model.FoundRecord{NameOnID: name, IDType: model.IDTypeOther})
		if err != nil {
			t.Fatalf("ForFound がエラーを返した: %v", err)
		}
		if res.Count != 0 {
			t.Errorf("空白の名前 %q で Count = %d, want 0", name, res.Count)
		}
	}
	if lister.foundCalls != 0 || lister.lostCalls != 0 {
		t.Errorf("一覧は取得されるべきではない: lost=%d found=%d", lister.lostCalls, lister.foundCalls)
	}
}

func TestMatcher_PropagatesListerError(t *testing.T) {
	want := &idfinder.RequestError{StatusCode: 500, Message: "HTTP 500"}
	m := NewMatcher(&fakeLister{err: want}, 0)

	_, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: "John", IDType: model.IDTypePassport})
	if !errors.Is(err, want) {
		t.Errorf("エラーはそのまま返されるべき: %v", err)
	}
}

func TestMatcher_SurroundingWhitespaceIsCompared(t *testing.T) {
	lister := &fakeLister{
		found: []model.FoundRecord{
			{ID: "f1", NameOnID: "John Smith", IDType: model.IDTypePassport, Status: model.FoundStatusUnclaimed},
			{ID: "f2", NameOnID: " John Smith ", IDType: model.IDTypePassport, Status: model.FoundStatusUnclaimed},
		},
		lost: []model.LostRecord{
			{ID: "l1", OwnerName: "Jane Doe", IDType: model.IDTypeStudentID, Status: model.LostStatusSearching},
		},
	}
	m := NewMatcher(lister, 50)

	// 前後の空白は取り除かずに部分一致を判定する
	res, err := m.ForLost(context.Background(), model.LostRecord{OwnerName: " john smith ", IDType: model.IDTypePassport})
	if err != nil {
		t.Fatalf("ForLost がエラーを返した: %v", err)
	}
	if res.Count != 1 || res.Found[0].ID != "f2" {
		t.Errorf("空白を含む名前は空白を含む候補のみに一致するべき: %v", res.Found)
	}

	res, err = m.ForFound(context.Background(), model.FoundRecord{NameOnID: "jane doe ", IDType: model.IDTypeStudentID})
	if err != nil {
		t.Fatalf("ForFound がエラーを返した: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("末尾の空白を含む名前は一致しないはず: Count = %d", res.Count)
	}
}
