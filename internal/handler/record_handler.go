package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/hitoshi/idfinder/internal/idfinder"
	"github.com/hitoshi/idfinder/internal/match"
	"github.com/hitoshi/idfinder/internal/middleware"
	"github.com/hitoshi/idfinder/internal/model"
	"github.com/hitoshi/idfinder/internal/registry"
	"github.com/hitoshi/idfinder/internal/security"
)

const maxReportBodyBytes = 64 << 10

// RegistryServiceInterface は届出ハンドラーが必要とするサービスインターフェース。
type RegistryServiceInterface interface {
	ListLost(ctx context.Context) ([]model.LostRecord, error)
	ListFound(ctx context.Context) ([]model.FoundRecord, error)
	Listings(ctx context.Context) (*registry.Listings, error)
	ReportLost(ctx context.Context, input model.CreateLostInput) (*registry.Report, error)
	ReportFound(ctx context.Context, input model.CreateFoundInput) (*registry.Report, error)
}

// URLValidator は利用者入力のURLを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// RecordHandler は紛失届・拾得届のHTTPハンドラー。
// 一覧は表示用ビューに変換し、自由記述はサニタイズしてから返す。
type RecordHandler struct {
	service   RegistryServiceInterface
	urlGuard  URLValidator
	sanitizer security.TextSanitizerService
	validate  *validator.Validate
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(service RegistryServiceInterface, urlGuard URLValidator, sanitizer security.TextSanitizerService) *RecordHandler {
	return &RecordHandler{
		service:   service,
		urlGuard:  urlGuard,
		sanitizer: sanitizer,
		validate:  newValidator(),
	}
}

// newValidator はjsonタグ名でエラーを報告し、id_typeタグを登録したValidatorを返す。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("id_type", func(fl validator.FieldLevel) bool {
		return model.IDType(fl.Field().String()).Valid()
	})
	return v
}

type lostView struct {
	ID               string `json:"id"`
	CreatedDate      string `json:"created_date"`
	OwnerName        string `json:"owner_name"`
	IDType           string `json:"id_type"`
	IDTypeLabel      string `json:"id_type_label"`
	IDNumberHint     string `json:"id_number_hint,omitempty"`
	LastSeenLocation string `json:"last_seen_location,omitempty"`
	Description      string `json:"description,omitempty"`
	Status           string `json:"status"`
	MatchedFoundID   string `json:"matched_found_id,omitempty"`
}

type foundView struct {
	ID            string `json:"id"`
	CreatedDate   string `json:"created_date"`
	NameOnID      string `json:"name_on_id"`
	IDType        string `json:"id_type"`
	IDTypeLabel   string `json:"id_type_label"`
	IDNumberHint  string `json:"id_number_hint,omitempty"`
	FoundLocation string `json:"found_location"`
	PhotoURL      string `json:"photo_url,omitempty"`
	FinderName    string `json:"finder_name,omitempty"`
	FinderContact string `json:"finder_contact"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"`
	MatchedLostID string `json:"matched_lost_id,omitempty"`
}

type listingView struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status"`
	IDType      string `json:"id_type"`
	IDTypeLabel string `json:"id_type_label"`
	Description string `json:"description,omitempty"`
	CreatedDate string `json:"created_date"`
}

type matchView struct {
	Count int         `json:"count"`
	Lost  []lostView  `json:"lost,omitempty"`
	Found []foundView `json:"found,omitempty"`
}

type reportResponse struct {
	Kind       string     `json:"kind"`
	Record     any        `json:"record"`
	Matches    *matchView `json:"matches"`
	MatchError string     `json:"match_error,omitempty"`
}

// 所有者のメールアドレスは一覧に含めない。
func (h *RecordHandler) lostView(r model.LostRecord) lostView {
	return lostView{
		ID:               r.ID,
		CreatedDate:      formatDate(r.CreatedDate),
		OwnerName:        h.sanitizer.Sanitize(r.OwnerName),
		IDType:           string(r.IDType),
		IDTypeLabel:      r.IDType.Label(),
		IDNumberHint:     h.sanitizer.Sanitize(r.IDNumberHint),
		LastSeenLocation: h.sanitizer.Sanitize(r.LastSeenLocation),
		Description:      h.sanitizer.Sanitize(r.Description),
		Status:           string(r.Status),
		MatchedFoundID:   r.MatchedFoundID,
	}
}

func (h *RecordHandler) foundView(r model.FoundRecord) foundView {
	v := foundView{
		ID:            r.ID,
		CreatedDate:   formatDate(r.CreatedDate),
		NameOnID:      h.sanitizer.Sanitize(r.NameOnID),
		IDType:        string(r.IDType),
		IDTypeLabel:   r.IDType.Label(),
		IDNumberHint:  h.sanitizer.Sanitize(r.IDNumberHint),
		FoundLocation: h.sanitizer.Sanitize(r.FoundLocation),
		FinderName:    h.sanitizer.Sanitize(r.FinderName),
		FinderContact: h.sanitizer.Sanitize(r.FinderContact),
		Description:   h.sanitizer.Sanitize(r.Description),
		Status:        string(r.Status),
		MatchedLostID: r.MatchedLostID,
	}
	// 上流に保存済みの値も内部ネットワークを指すものは表示しない
	if r.PhotoURL != "" && h.urlGuard.ValidateURL(r.PhotoURL) == nil {
		v.PhotoURL = r.PhotoURL
	}
	return v
}

func (h *RecordHandler) listingView(l model.Listing) listingView {
	return listingView{
		Kind:        string(l.Kind),
		ID:          l.ID(),
		Title:       h.sanitizer.Sanitize(l.Title()),
		Location:    h.sanitizer.Sanitize(l.Location()),
		Status:      l.Status(),
		IDType:      string(l.IDType()),
		IDTypeLabel: l.IDType().Label(),
		Description: h.sanitizer.Sanitize(l.Description()),
		CreatedDate: formatDate(l.CreatedDate()),
	}
}

func (h *RecordHandler) matchView(res *match.Result) *matchView {
	if res == nil {
		return nil
	}
	return &matchView{
		Count: res.Count,
		Lost:  lo.Map(res.Lost, func(r model.LostRecord, _ int) lostView { return h.lostView(r) }),
		Found: lo.Map(res.Found, func(r model.FoundRecord, _ int) foundView { return h.foundView(r) }),
	}
}

// formatDate は解釈できた日時をRFC3339(UTC)で返し、解釈できない値は受信したまま返す。
func formatDate(ts model.Timestamp) string {
	if !ts.Valid() {
		return ts.String()
	}
	return ts.Time().UTC().Format(time.RFC3339)
}

// ListLost は紛失届の一覧を返す。
// GET /api/lost
func (h *RecordHandler) ListLost(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListLost(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	items := lo.Map(records, func(rec model.LostRecord, _ int) lostView { return h.lostView(rec) })
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// ListFound は拾得届の一覧を返す。
// GET /api/found
func (h *RecordHandler) ListFound(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListFound(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	items := lo.Map(records, func(rec model.FoundRecord, _ int) foundView { return h.foundView(rec) })
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// Listings は紛失届と拾得届を新しい順にまとめて返す。
// GET /api/listings
func (h *RecordHandler) Listings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Listings(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       lo.Map(listings.Items, func(l model.Listing, _ int) listingView { return h.listingView(l) }),
		"lost_count":  listings.LostCount,
		"found_count": listings.FoundCount,
	})
}

// ReportLost は紛失届を作成し、一致しそうな拾得届とともに返す。
// POST /api/lost
func (h *RecordHandler) ReportLost(w http.ResponseWriter, r *http.Request) {
	var form lostReportForm
	if !h.decodeAndValidate(w, r, &form) {
		return
	}

	report, err := h.service.ReportLost(r.Context(), form.input())
	if report == nil {
		writeRegistryError(w, err)
		return
	}
	h.writeReport(w, report, h.lostView(*report.Listing.Lost), err)
}

// ReportFound は拾得届を作成し、一致しそうな紛失届とともに返す。
// POST /api/found
func (h *RecordHandler) ReportFound(w http.ResponseWriter, r *http.Request) {
	var form foundReportForm
	if !h.decodeAndValidate(w, r, &form) {
		return
	}
	if form.PhotoURL != "" {
		if err := h.urlGuard.ValidateURL(form.PhotoURL); err != nil {
			slog.Warn("photo url rejected", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPhotoURLError(err.Error()))
			return
		}
	}

	report, err := h.service.ReportFound(r.Context(), form.input())
	if report == nil {
		writeRegistryError(w, err)
		return
	}
	h.writeReport(w, report, h.foundView(*report.Listing.Found), err)
}

// writeReport は作成結果を201で返す。
// 一致推定のみが失敗した場合も作成は成功として扱い、match_errorに理由を含める。
func (h *RecordHandler) writeReport(w http.ResponseWriter, report *registry.Report, record any, err error) {
	resp := reportResponse{
		Kind:    string(report.Listing.Kind),
		Record:  record,
		Matches: h.matchView(report.Matches),
	}
	if errors.Is(err, registry.ErrMatchUnavailable) {
		resp.MatchError = registry.ErrMatchUnavailable.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// decodeAndValidate はボディをデコードして検証する。失敗時はレスポンスを書き込みfalseを返す。
func (h *RecordHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if field, ok := rejectedField(err); ok {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(field+": 指定できないフィールドです"))
			return false
		}
		slog.Warn("failed to decode report body", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidJSONError())
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(describeValidation(verrs)))
			return false
		}
		slog.Error("validator failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return false
	}
	return true
}

// describeValidation は "owner_name: required, id_type: id_type" の形式でエラーをまとめる。
func describeValidation(verrs validator.ValidationErrors) string {
	parts := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		if fe.Param() != "" {
			return fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
	})
	return strings.Join(parts, ", ")
}

// writeRegistryError は届出APIのエラーをHTTPステータスに変換する。
//   - エンドポイント未設定: 503 NOT_CONFIGURED
//   - 上流のエラー応答・不正な応答: 502 UPSTREAM_FAILED（上流のメッセージを含む）
//   - 通信エラー: 502 UPSTREAM_FAILED
func writeRegistryError(w http.ResponseWriter, err error) {
	if idfinder.IsConfigurationError(err) {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewNotConfiguredError())
		return
	}
	if reqErr, ok := idfinder.AsRequestError(err); ok {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError(reqErr.Message))
		return
	}
	slog.Error("registry request failed", slog.String("error", err.Error()))
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError("届出APIに接続できませんでした。"))
}
