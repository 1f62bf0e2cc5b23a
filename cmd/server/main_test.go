package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/kafka"
	"kobonz/internal/logger"
	"kobonz/internal/models"

	"github.com/google/uuid"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: "0", ReadTimeout: 5, WriteTimeout: 5},
		Store:   config.StoreConfig{Driver: "memory"},
		Logger:  config.LoggerConfig{Level: "error", Format: "json"},
		Auth:    config.AuthConfig{JWTSecret: "test-secret", Issuer: "kobonz", TokenTTLHours: 1},
		Rewards: config.RewardsConfig{SignupBonus: 20, ReferralBonus: 50, RedeemMaxAttempts: 3},
		Earnings: config.EarningsConfig{
			HoldDays:   30,
			BatchSize:  10,
			CronSecret: "cron-secret",
		},
		Tracking: config.TrackingConfig{QueueSize: 16, Workers: 1, AppBaseURL: "https://kobonz.test"},
		Cache:    config.CacheConfig{CouponTTLSeconds: 60},
	}
}

func useConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	prev := loadConfig
	loadConfig = func() *config.Config { return cfg }
	t.Cleanup(func() { loadConfig = prev })
}

func buildTestApp(t *testing.T) *application {
	t.Helper()
	app, err := buildApplication()
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.shutdown(ctx)
	})
	return app
}

func serve(app *application, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	app.mux.ServeHTTP(rr, req)
	return rr
}

func TestBuildApplication_MemoryStore(t *testing.T) {
	useConfig(t, testConfig())
	app := buildTestApp(t)

	if app.db != nil || app.redis != nil || app.producer != nil || app.consumer != nil {
		t.Fatalf("memory mode must not open external connections")
	}

	rr := serve(app, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthy service without external deps, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBuildApplication_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	useConfig(t, cfg)
	if _, err := buildApplication(); err == nil {
		t.Fatalf("expected error without jwt secret")
	}

	cfg = testConfig()
	cfg.Store.Driver = "cassandra"
	useConfig(t, cfg)
	if _, err := buildApplication(); err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestBuildApplication_KafkaUnavailableDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	useConfig(t, cfg)

	prevProducer, prevConsumer, prevCheck := newKafkaProducer, newKafkaConsumer, kafkaHealthCheck
	newKafkaProducer = func(*config.KafkaConfig, *logger.Logger) (*kafka.Producer, error) {
		return nil, errors.New("no brokers")
	}
	newKafkaConsumer = func(*config.KafkaConfig, *logger.Logger) (*kafka.Consumer, error) {
		return nil, errors.New("no brokers")
	}
	kafkaHealthCheck = func([]string) error { return errors.New("down") }
	t.Cleanup(func() {
		newKafkaProducer, newKafkaConsumer, kafkaHealthCheck = prevProducer, prevConsumer, prevCheck
	})

	app := buildTestApp(t)
	if app.producer != nil || app.consumer != nil {
		t.Fatalf("failed kafka clients must not be kept")
	}
	if rr := serve(app, http.MethodGet, "/health/readiness", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readiness to report kafka outage, got %d", rr.Code)
	}
}

func TestRoutes_RegisterAndRedeem(t *testing.T) {
	useConfig(t, testConfig())
	app := buildTestApp(t)

	rr := serve(app, http.MethodPost, "/api/auth/register",
		`{"email":"ann@example.com","password":"longenough","display_name":"Ann"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var auth models.AuthResponse
	if err := json.NewDecoder(rr.Body).Decode(&auth); err != nil {
		t.Fatalf("decode register: %v", err)
	}

	now := time.Now()
	coupon := &models.Coupon{
		ID:            uuid.New(),
		ShopID:        uuid.New(),
		Title:         "Deal",
		DiscountType:  models.DiscountTypePercent,
		DiscountValue: 10,
		UsesLeft:      2,
		RewardPoints:  5,
		Active:        true,
		Approved:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := app.store.CreateCoupon(context.Background(), coupon); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	rr = serve(app, http.MethodGet, "/api/public/coupons/"+coupon.ID.String(), "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("public coupon: expected 200, got %d", rr.Code)
	}

	rr = serve(app, http.MethodPost, "/api/public/coupons/"+coupon.ID.String()+"/redeem", "", auth.Token)
	if rr.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result models.RedemptionResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode redeem: %v", err)
	}
	if result.UsesLeft != 1 || result.RewardPoints != 5 {
		t.Fatalf("unexpected redemption result: %+v", result)
	}

	rr = serve(app, http.MethodGet, "/api/me", "", auth.Token)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rr.Code)
	}
	var me models.Account
	if err := json.NewDecoder(rr.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Credits != 25 {
		t.Fatalf("expected signup bonus plus reward points, got %d", me.Credits)
	}
}

func TestRoutes_CallableRequiresToken(t *testing.T) {
	useConfig(t, testConfig())
	app := buildTestApp(t)

	rr := serve(app, http.MethodPost, "/api/callable/redeemCoupon", `{"data":{"couponId":"`+uuid.NewString()+`"}}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = serve(app, http.MethodPost, "/api/callable/redeemCoupon", `{"data":{"couponId":"`+uuid.NewString()+`"}}`, "garbage")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil || env.Error.Code != "unauthenticated" {
		t.Fatalf("expected callable unauthenticated envelope, got %s", rr.Body.String())
	}
}

func TestRoutes_ProtectedAndCron(t *testing.T) {
	useConfig(t, testConfig())
	app := buildTestApp(t)

	for _, path := range []string{"/api/coupons", "/api/affiliate/links", "/api/affiliate/earnings", "/api/me/ledger"} {
		if rr := serve(app, http.MethodGet, path, "", ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rr.Code)
		}
	}

	if rr := serve(app, http.MethodPost, "/api/cron/process-earnings", "", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("cron: expected 401, got %d", rr.Code)
	}
	if rr := serve(app, http.MethodPost, "/api/cron/process-earnings", "", "cron-secret"); rr.Code != http.StatusOK {
		t.Fatalf("cron: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCorsPreflight(t *testing.T) {
	useConfig(t, testConfig())
	app := buildTestApp(t)

	rr := serve(app, http.MethodOptions, "/api/public/coupons", "", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS preflight response, got %d", rr.Code)
	}
}
