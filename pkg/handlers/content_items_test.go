package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

func TestContentItemHandler_RequestDerivatives(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTypes []string
	}{
		{"empty body requests everything", "", nil},
		{"explicit types", `{"derivative_types":["linkedin_post","email"]}`, []string{"linkedin_post", "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := &mockContentItemService{}
			handler := NewContentItemHandler(items, &mockDerivativeService{}, zap.NewNop())

			itemID := uuid.New()
			req := withUser(httptest.NewRequest(http.MethodPost, "/api/content-items/x/derivatives", bytes.NewBufferString(tt.body)), testUserID)
			req.SetPathValue("cid", itemID.String())
			rec := httptest.NewRecorder()
			handler.RequestDerivatives(rec, req)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, tt.wantTypes, items.types)
			assert.Contains(t, rec.Body.String(), itemID.String())
		})
	}
}

func TestContentItemHandler_RequestDerivatives_NoWebhook(t *testing.T) {
	items := &mockContentItemService{err: apperrors.ErrNoWebhookConfigured}
	handler := NewContentItemHandler(items, &mockDerivativeService{}, zap.NewNop())

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/content-items/x/derivatives", nil), testUserID)
	req.SetPathValue("cid", uuid.NewString())
	rec := httptest.NewRecorder()
	handler.RequestDerivatives(rec, req)

	assert.Equal(t, http.StatusFailedDependency, rec.Code)
}

func TestContentItemHandler_DerivativeCounts(t *testing.T) {
	items := &mockContentItemService{counts: []*models.DerivativeCounts{}}
	handler := NewContentItemHandler(items, &mockDerivativeService{}, zap.NewNop())
	a, b := uuid.New(), uuid.New()

	req := withUser(httptest.NewRequest(http.MethodGet,
		"/api/content-items/derivative-counts?item_ids="+a.String()+","+b.String(), nil), testUserID)
	rec := httptest.NewRecorder()
	handler.DerivativeCounts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{a, b}, items.countIDs)
}

func TestContentItemHandler_Publish(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"published", nil, http.StatusOK},
		{"wordpress not configured", apperrors.ErrNotConfigured, http.StatusServiceUnavailable},
		{"not approved", apperrors.ErrInvalidStatus, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := &mockContentItemService{item: &models.ContentItem{ID: id}, err: tt.err}
			handler := NewContentItemHandler(items, &mockDerivativeService{}, zap.NewNop())

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/content-items/x/publish", nil), testUserID)
			req.SetPathValue("id", id.String())
			rec := httptest.NewRecorder()
			handler.Publish(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, id, items.published)
		})
	}
}

func TestContentItemHandler_ListDerivatives(t *testing.T) {
	derivatives := &mockDerivativeService{list: []*models.ContentDerivative{}}
	handler := NewContentItemHandler(&mockContentItemService{}, derivatives, zap.NewNop())
	itemID := uuid.New()

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/content-items/x/derivatives", nil), testUserID)
	req.SetPathValue("cid", itemID.String())
	rec := httptest.NewRecorder()
	handler.ListDerivatives(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, itemID, derivatives.itemID)
}
