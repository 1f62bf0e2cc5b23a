package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kobonz/internal/apperror"
	"kobonz/internal/models"

	"github.com/google/uuid"
)

func TestAffiliateHandler_CreateLink(t *testing.T) {
	affiliates := &stubAffiliates{}
	h := NewAffiliateHandler(affiliates, newTestLogger())
	affiliateID := uuid.New()

	body := fmt.Sprintf(`{"coupon_id":%q}`, uuid.New())
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/affiliate/links", strings.NewReader(body)), affiliateID, models.RoleAffiliate)
	rr := httptest.NewRecorder()
	h.CreateLink(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if affiliates.gotOwner != affiliateID {
		t.Fatalf("link must belong to caller")
	}
}

func TestAffiliateHandler_CreateLinkErrors(t *testing.T) {
	valid := fmt.Sprintf(`{"coupon_id":%q}`, uuid.New())
	cases := []struct {
		name   string
		role   models.Role
		body   string
		err    error
		status int
	}{
		{"customer forbidden", models.RoleCustomer, valid, nil, http.StatusForbidden},
		{"invalid coupon id", models.RoleAffiliate, `{"coupon_id":"x"}`, nil, http.StatusBadRequest},
		{"duplicate link", models.RoleAffiliate, valid, apperror.Conflict("link already exists", nil), http.StatusConflict},
		{"unapproved coupon", models.RoleAffiliate, valid, apperror.Precondition("coupon is not approved", nil), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAffiliateHandler(&stubAffiliates{err: tc.err}, newTestLogger())
			req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/affiliate/links", strings.NewReader(tc.body)), uuid.New(), tc.role)
			rr := httptest.NewRecorder()
			h.CreateLink(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestAffiliateHandler_ListLinksAndEarnings(t *testing.T) {
	affiliateID := uuid.New()
	affiliates := &stubAffiliates{
		links:    []*models.AffiliateLink{{ID: uuid.New(), AffiliateID: affiliateID}},
		earnings: []*models.Earning{{ID: uuid.New(), AffiliateID: affiliateID}},
	}
	h := NewAffiliateHandler(affiliates, newTestLogger())

	rr := httptest.NewRecorder()
	h.ListLinks(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/api/affiliate/links", nil), affiliateID, models.RoleAffiliate))
	if rr.Code != http.StatusOK || affiliates.gotOwner != affiliateID {
		t.Fatalf("expected own links, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ListEarnings(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/api/affiliate/earnings?limit=5", nil), affiliateID, models.RoleAffiliate))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ListEarnings(rr, httptest.NewRequest(http.MethodGet, "/api/affiliate/earnings", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("anonymous earnings request must be forbidden, got %d", rr.Code)
	}
}
