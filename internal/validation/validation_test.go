package validation

import (
	"strings"
	"testing"

	"kobonz/internal/apperror"
	"kobonz/internal/models"
)

func TestStruct_Valid(t *testing.T) {
	req := models.RegisterRequest{Email: "a@example.com", Password: "secret-pass", DisplayName: "Ann"}
	if err := Struct(req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestStruct_UsesJSONNames(t *testing.T) {
	err := Struct(models.CallableRedeemData{CouponID: "not-a-uuid"})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "couponId must be a valid UUID") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestStruct_MultipleErrors(t *testing.T) {
	err := Struct(models.CreateCouponRequest{DiscountType: "bogus"})
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"title is required", "discount_type must be one of", "uses is required"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestStruct_OptionalFields(t *testing.T) {
	days := 0
	req := models.CreateCouponRequest{
		Title:         "x",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5,
		Uses:          1,
		ValidityDays:  &days,
	}
	if err := Struct(req); err == nil {
		t.Fatalf("expected validity_days lower bound error")
	}
	req.ValidityDays = nil
	if err := Struct(req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}
