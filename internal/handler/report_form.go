package handler

import (
	"strconv"
	"strings"

	"github.com/hitoshi/idfinder/internal/model"
)

// serverAssignedFields は届出フォームで受け付けず、検証エラーとして報告するフィールド。
// ステータスの指定はGoのAPI(model.CreateLostInput.Status など)からのみ行える。
var serverAssignedFields = map[string]bool{
	"id":           true,
	"created_date": true,
	"status":       true,
}

// lostReportForm は POST /api/lost のボディ。
type lostReportForm struct {
	OwnerName        string       `json:"owner_name" validate:"required"`
	OwnerEmail       string       `json:"owner_email" validate:"required,email"`
	IDType           model.IDType `json:"id_type" validate:"required,id_type"`
	IDNumberHint     string       `json:"id_number_hint" validate:"max=16"`
	LastSeenLocation string       `json:"last_seen_location"`
	Description      string       `json:"description"`
	MatchedFoundID   string       `json:"matched_found_id"`
}

func (f lostReportForm) input() model.CreateLostInput {
	return model.CreateLostInput{
		OwnerName:        f.OwnerName,
		OwnerEmail:       f.OwnerEmail,
		IDType:           f.IDType,
		IDNumberHint:     f.IDNumberHint,
		LastSeenLocation: f.LastSeenLocation,
		Description:      f.Description,
		MatchedFoundID:   f.MatchedFoundID,
	}
}

// foundReportForm は POST /api/found のボディ。
type foundReportForm struct {
	NameOnID      string       `json:"name_on_id" validate:"required"`
	IDType        model.IDType `json:"id_type" validate:"required,id_type"`
	IDNumberHint  string       `json:"id_number_hint" validate:"max=16"`
	FoundLocation string       `json:"found_location" validate:"required"`
	PhotoURL      string       `json:"photo_url" validate:"omitempty,url"`
	FinderName    string       `json:"finder_name"`
	FinderContact string       `json:"finder_contact" validate:"required"`
	Description   string       `json:"description"`
	MatchedLostID string       `json:"matched_lost_id"`
}

func (f foundReportForm) input() model.CreateFoundInput {
	return model.CreateFoundInput{
		NameOnID:      f.NameOnID,
		IDType:        f.IDType,
		IDNumberHint:  f.IDNumberHint,
		FoundLocation: f.FoundLocation,
		PhotoURL:      f.PhotoURL,
		FinderName:    f.FinderName,
		FinderContact: f.FinderContact,
		Description:   f.Description,
		MatchedLostID: f.MatchedLostID,
	}
}

// rejectedField はDisallowUnknownFieldsのデコードエラーから、
// サーバー側で決まるフィールドが指定された場合にその名前を返す。
func rejectedField(err error) (string, bool) {
	rest, ok := strings.CutPrefix(err.Error(), "json: unknown field ")
	if !ok {
		return "", false
	}
	name, err := strconv.Unquote(rest)
	if err != nil || !serverAssignedFields[name] {
		return "", false
	}
	return name, true
}
