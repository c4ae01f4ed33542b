// Package model はドメインモデルを定義する。
package model

// IDType は身分証の種別を表す。
type IDType string

const (
	IDTypeNationalID     IDType = "national_id"
	IDTypeDriversLicense IDType = "drivers_license"
	IDTypePassport       IDType = "passport"
	IDTypeStudentID      IDType = "student_id"
	IDTypeWorkID         IDType = "work_id"
	IDTypeOther          IDType = "other"
)

// idTypeLabels は表示用のラベル。
var idTypeLabels = map[IDType]string{
	IDTypeNationalID:     "National ID",
	IDTypeDriversLicense: "Driver's License",
	IDTypePassport:       "Passport",
	IDTypeStudentID:      "Student ID",
	IDTypeWorkID:         "Work ID",
	IDTypeOther:          "Other",
}

// IDTypes は全ての身分証種別を定義順に返す。
func IDTypes() []IDType {
	return []IDType{
		IDTypeNationalID,
		IDTypeDriversLicense,
		IDTypePassport,
		IDTypeStudentID,
		IDTypeWorkID,
		IDTypeOther,
	}
}

// Valid は定義済みの種別かどうかを返す。
func (t IDType) Valid() bool {
	_, ok := idTypeLabels[t]
	return ok
}

// Label は表示用ラベルを返す。未知の種別は "Other" として扱う。
func (t IDType) Label() string {
	if label, ok := idTypeLabels[t]; ok {
		return label
	}
	return idTypeLabels[IDTypeOther]
}

// LostStatus は紛失届のステータス。
// 遷移はバックエンドが所有し、このクライアントは読み取りのみ行う。
type LostStatus string

const (
	// LostStatusSearching は作成直後の初期状態。
	LostStatusSearching LostStatus = "searching"
	// LostStatusMatched は拾得届と紐付けられた状態。
	LostStatusMatched LostStatus = "matched"
	// LostStatusRecovered は持ち主が受け取りを確認した状態。
	LostStatusRecovered LostStatus = "recovered"
)

// Valid は定義済みのステータスかどうかを返す。
func (s LostStatus) Valid() bool {
	switch s {
	case LostStatusSearching, LostStatusMatched, LostStatusRecovered:
		return true
	}
	return false
}

// FoundStatus は拾得届のステータス。
type FoundStatus string

const (
	// FoundStatusUnclaimed は作成直後の初期状態。
	FoundStatusUnclaimed FoundStatus = "unclaimed"
	// FoundStatusMatched は紛失届と紐付けられた状態。
	FoundStatusMatched FoundStatus = "matched"
	// FoundStatusReturned は持ち主に返却された状態。
	FoundStatusReturned FoundStatus = "returned"
)

// Valid は定義済みのステータスかどうかを返す。
func (s FoundStatus) Valid() bool {
	switch s {
	case FoundStatusUnclaimed, FoundStatusMatched, FoundStatusReturned:
		return true
	}
	return false
}

// LostRecord は紛失した身分証の届出を表す。
// ID と CreatedDate はバックエンドが採番する。
type LostRecord struct {
	ID               string     `json:"id"`
	CreatedDate      Timestamp  `json:"created_date"`
	OwnerName        string     `json:"owner_name"`
	OwnerEmail       string     `json:"owner_email"`
	IDType           IDType     `json:"id_type"`
	IDNumberHint     string     `json:"id_number_hint,omitempty"`
	LastSeenLocation string     `json:"last_seen_location,omitempty"`
	Description      string     `json:"description,omitempty"`
	Status           LostStatus `json:"status"`
	MatchedFoundID   string     `json:"matched_found_id,omitempty"`
}

// FoundRecord は拾得した身分証の届出を表す。
type FoundRecord struct {
	ID            string      `json:"id"`
	CreatedDate   Timestamp   `json:"created_date"`
	NameOnID      string      `json:"name_on_id"`
	IDType        IDType      `json:"id_type"`
	IDNumberHint  string      `json:"id_number_hint,omitempty"`
	FoundLocation string      `json:"found_location"`
	PhotoURL      string      `json:"photo_url,omitempty"`
	FinderName    string      `json:"finder_name,omitempty"`
	FinderContact string      `json:"finder_contact"`
	Description   string      `json:"description,omitempty"`
	Status        FoundStatus `json:"status"`
	MatchedLostID string      `json:"matched_lost_id,omitempty"`
}

// CreateLostInput は紛失届の作成入力。
// id、created_date はリクエストに含めない。Status は明示指定時のみ送信される。
// Status の指定はGoのAPIからのみ可能で、HTTPの届出フォームからは受け付けない。
type CreateLostInput struct {
	OwnerName        string      `json:"owner_name"`
	OwnerEmail       string      `json:"owner_email"`
	IDType           IDType      `json:"id_type"`
	IDNumberHint     string      `json:"id_number_hint,omitempty"`
	LastSeenLocation string      `json:"last_seen_location,omitempty"`
	Description      string      `json:"description,omitempty"`
	Status           *LostStatus `json:"status,omitempty"`
	MatchedFoundID   string      `json:"matched_found_id,omitempty"`
}

// CreateFoundInput は拾得届の作成入力。
type CreateFoundInput struct {
	NameOnID      string       `json:"name_on_id"`
	IDType        IDType       `json:"id_type"`
	IDNumberHint  string       `json:"id_number_hint,omitempty"`
	FoundLocation string       `json:"found_location"`
	PhotoURL      string       `json:"photo_url,omitempty"`
	FinderName    string       `json:"finder_name,omitempty"`
	FinderContact string       `json:"finder_contact"`
	Description   string       `json:"description,omitempty"`
	Status        *FoundStatus `json:"status,omitempty"`
	MatchedLostID string       `json:"matched_lost_id,omitempty"`
}
