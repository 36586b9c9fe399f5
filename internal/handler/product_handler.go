package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/productguard/internal/model"
)

// ProductStore は商品の参照・更新インターフェース。
type ProductStore interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
}

// DMCAProfileStore はDMCAプロフィールの参照・更新インターフェース。
type DMCAProfileStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.DMCAProfile, error)
	Upsert(ctx context.Context, profile *model.DMCAProfile) error
}

// ProductHandler は保護対象商品のHTTPハンドラー。
type ProductHandler struct {
	products ProductStore
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(products ProductStore) *ProductHandler {
	return &ProductHandler{products: products}
}

// productPayload は商品の登録・更新リクエストのボディ。
type productPayload struct {
	Name                        string            `json:"name"`
	Type                        string            `json:"type"`
	Price                       string            `json:"price"`
	URL                         string            `json:"url"`
	Description                 string            `json:"description"`
	BrandName                   string            `json:"brand_name"`
	TrademarkNumber             string            `json:"trademark_number"`
	CopyrightRegistrationNumber string            `json:"copyright_registration_number"`
	Fingerprint                 model.Fingerprint `json:"fingerprint"`
	DMCAContactEmail            string            `json:"dmca_contact_email"`
}

// productResponse は商品のAPIレスポンス。
type productResponse struct {
	ID                          string            `json:"id"`
	Name                        string            `json:"name"`
	Type                        string            `json:"type"`
	Price                       string            `json:"price,omitempty"`
	URL                         string            `json:"url"`
	Description                 string            `json:"description,omitempty"`
	BrandName                   string            `json:"brand_name,omitempty"`
	TrademarkNumber             string            `json:"trademark_number,omitempty"`
	CopyrightRegistrationNumber string            `json:"copyright_registration_number,omitempty"`
	Fingerprint                 model.Fingerprint `json:"fingerprint"`
	DMCAContactEmail            string            `json:"dmca_contact_email,omitempty"`
	CreatedAt                   time.Time         `json:"created_at"`
}

// CreateProduct は商品の登録を処理する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Name == "" || req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "nameとurlは必須です。",
			Category: "validation",
			Action:   "商品名と商品ページのURLを指定してください。",
		})
		return
	}

	product := &model.Product{
		ID:                          uuid.NewString(),
		UserID:                      userID,
		Name:                        req.Name,
		Type:                        productType(req.Type),
		Price:                       req.Price,
		URL:                         req.URL,
		Description:                 req.Description,
		BrandName:                   req.BrandName,
		TrademarkNumber:             req.TrademarkNumber,
		CopyrightRegistrationNumber: req.CopyrightRegistrationNumber,
		Fingerprint:                 req.Fingerprint,
		DMCAContactEmail:            req.DMCAContactEmail,
	}
	if err := h.products.Create(r.Context(), product); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// ListProducts はユーザーの商品一覧を返す。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	products, err := h.products.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

// GetProduct は商品の詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	product, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// UpdateProduct は商品情報の更新を処理する。
// PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	product, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Name == "" || req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "nameとurlは必須です。",
			Category: "validation",
			Action:   "商品名と商品ページのURLを指定してください。",
		})
		return
	}

	product.Name = req.Name
	product.Type = productType(req.Type)
	product.Price = req.Price
	product.URL = req.URL
	product.Description = req.Description
	product.BrandName = req.BrandName
	product.TrademarkNumber = req.TrademarkNumber
	product.CopyrightRegistrationNumber = req.CopyrightRegistrationNumber
	product.Fingerprint = req.Fingerprint
	product.DMCAContactEmail = req.DMCAContactEmail

	if err := h.products.Update(r.Context(), product); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// findOwned はURLパラメータの商品を所有権チェック付きで取得する。
func (h *ProductHandler) findOwned(w http.ResponseWriter, r *http.Request, userID string) (*model.Product, bool) {
	id := chi.URLParam(r, "id")
	product, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if product == nil || product.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(id))
		return nil, false
	}
	return product, true
}

// productType は商品タイプ文字列を正規化する。未知の値はotherに落とす。
func productType(s string) model.ProductType {
	switch t := model.ProductType(s); t {
	case model.ProductTypeCourse, model.ProductTypeIndicator, model.ProductTypeSoftware,
		model.ProductTypeTemplate, model.ProductTypeEbook:
		return t
	default:
		return model.ProductTypeOther
	}
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:                          p.ID,
		Name:                        p.Name,
		Type:                        string(p.Type),
		Price:                       p.Price,
		URL:                         p.URL,
		Description:                 p.Description,
		BrandName:                   p.BrandName,
		TrademarkNumber:             p.TrademarkNumber,
		CopyrightRegistrationNumber: p.CopyrightRegistrationNumber,
		Fingerprint:                 p.Fingerprint,
		DMCAContactEmail:            p.DMCAContactEmail,
		CreatedAt:                   p.CreatedAt,
	}
}

// ProfileHandler はDMCA連絡先プロフィールのHTTPハンドラー。
type ProfileHandler struct {
	profiles DMCAProfileStore
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles DMCAProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profilePayload はDMCAプロフィール更新リクエストのボディ。
type profilePayload struct {
	Name          string `json:"name"`
	Company       string `json:"company"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	IsOwner       bool   `json:"is_owner"`
	OwnerRelation string `json:"owner_relation"`
}

// profileResponse はDMCAプロフィールのAPIレスポンス。
type profileResponse struct {
	Name          string `json:"name"`
	Company       string `json:"company,omitempty"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address"`
	IsOwner       bool   `json:"is_owner"`
	OwnerRelation string `json:"owner_relation,omitempty"`
}

// GetProfile はユーザーのDMCAプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.FindByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpsertProfile はユーザーのDMCAプロフィールを登録・更新する。
// 名前・メール・住所は法的に完全な通知の必須項目として検証する。
// PUT /api/profile
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req profilePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Name == "" || req.Email == "" || req.Address == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "name、email、addressは必須です。",
			Category: "validation",
			Action:   "DMCA通知の署名ブロックに必要な氏名・メールアドレス・住所を指定してください。",
		})
		return
	}

	profile := &model.DMCAProfile{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          req.Name,
		Company:       req.Company,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		IsOwner:       req.IsOwner,
		OwnerRelation: req.OwnerRelation,
	}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func toProfileResponse(p *model.DMCAProfile) profileResponse {
	return profileResponse{
		Name:          p.Name,
		Company:       p.Company,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		IsOwner:       p.IsOwner,
		OwnerRelation: p.OwnerRelation,
	}
}
