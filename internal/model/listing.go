package model

// RecordKind は届出の種類（紛失/拾得）を表す。
type RecordKind string

const (
	KindLost  RecordKind = "lost"
	KindFound RecordKind = "found"
)

// Valid は定義済みの種類かどうかを返す。
func (k RecordKind) Valid() bool {
	return k == KindLost || k == KindFound
}

// Listing は紛失届と拾得届を一覧表示で同列に扱うためのタグ付きバリアント。
// Kind に応じて Lost か Found のどちらか一方のみが設定される。
type Listing struct {
	Kind  RecordKind
	Lost  *LostRecord
	Found *FoundRecord
}

// NewLostListing は紛失届のListingを生成する。
func NewLostListing(r LostRecord) Listing {
	return Listing{Kind: KindLost, Lost: &r}
}

// NewFoundListing は拾得届のListingを生成する。
func NewFoundListing(r FoundRecord) Listing {
	return Listing{Kind: KindFound, Found: &r}
}

// ID は届出IDを返す。
func (l Listing) ID() string {
	switch l.Kind {
	case KindLost:
		return l.Lost.ID
	case KindFound:
		return l.Found.ID
	}
	return ""
}

// Title は表示タイトルを返す。紛失届は持ち主の名前、拾得届は身分証記載の名前。
func (l Listing) Title() string {
	switch l.Kind {
	case KindLost:
		return l.Lost.OwnerName
	case KindFound:
		return l.Found.NameOnID
	}
	return ""
}

// Location は紛失場所または拾得場所を返す。
func (l Listing) Location() string {
	switch l.Kind {
	case KindLost:
		return l.Lost.LastSeenLocation
	case KindFound:
		return l.Found.FoundLocation
	}
	return ""
}

// Status はステータスを文字列で返す。
func (l Listing) Status() string {
	switch l.Kind {
	case KindLost:
		return string(l.Lost.Status)
	case KindFound:
		return string(l.Found.Status)
	}
	return ""
}

// IDType は身分証種別を返す。
func (l Listing) IDType() IDType {
	switch l.Kind {
	case KindLost:
		return l.Lost.IDType
	case KindFound:
		return l.Found.IDType
	}
	return ""
}

// Description は自由記述欄を返す。
func (l Listing) Description() string {
	switch l.Kind {
	case KindLost:
		return l.Lost.Description
	case KindFound:
		return l.Found.Description
	}
	return ""
}

// CreatedDate は作成日時を返す。
func (l Listing) CreatedDate() Timestamp {
	switch l.Kind {
	case KindLost:
		return l.Lost.CreatedDate
	case KindFound:
		return l.Found.CreatedDate
	}
	return Timestamp{}
}
