package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/board-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/board-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/board-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

const (
	testKeyID  = "test-key-server"
	testIssuer = "https://idp.test/realms/board"
)

// stubArticles отвечает одной и той же статьёй; остальные методы не вызываются.
type stubArticles struct {
	handlers.ArticleService
}

func (stubArticles) Get(_ context.Context, _ service.Caller, id string) (*model.Article, error) {
	return &model.Article{ID: id, Status: model.StatusActive}, nil
}

func (stubArticles) Approve(_ context.Context, _ service.Caller, id string) (*model.Article, error) {
	return &model.Article{ID: id, Status: model.StatusActive}, nil
}

func (stubArticles) ConfirmPayment(_ context.Context, _ service.Caller, id string) (*model.Article, error) {
	return &model.Article{ID: id, Status: model.StatusActive}, nil
}

type stubLists struct {
	handlers.ListService
}

func (stubLists) Default(_ context.Context, _ string, limit, offset int) (*service.ListResult, error) {
	return &service.ListResult{Limit: limit, Offset: offset}, nil
}

type stubPrices struct {
	handlers.PriceService
}

func (stubPrices) DeleteOverride(context.Context, string, int) error { return nil }

type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "" }

type testServer struct {
	handler http.Handler
	key     *rsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	jwks, _ := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtAuth := middleware.NewJWTAuthWithKeyfunc(kf, testIssuer, []string{"board-moderators"}, logger)

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load() ошибка: %v", err)
	}
	validator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		t.Fatalf("OpenAPIValidator() ошибка: %v", err)
	}

	h := handlers.NewAPIHandler(
		handlers.NewHealthHandler(okChecker{}, okChecker{}),
		stubArticles{}, stubLists{}, stubPrices{}, logger,
	)
	return &testServer{
		handler: NewRouter(logger, h, jwtAuth, validator),
		key:     key,
	}
}

func (s *testServer) token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["iss"] = testIssuer
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(s.key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (s *testServer) do(method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_Access(t *testing.T) {
	srv := newTestServer(t)

	author := srv.token(t, jwt.MapClaims{"sub": "user-1"})
	moderator := srv.token(t, jwt.MapClaims{"sub": "mod-1", "groups": []string{"board-moderators"}})
	payments := srv.token(t, jwt.MapClaims{"sub": "sa-pay", "client_id": "payments", "scope": "payments:confirm"})
	otherSA := srv.token(t, jwt.MapClaims{"sub": "sa-other", "client_id": "reports", "scope": "reports:read"})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health без токена", http.MethodGet, "/health/live", "", http.StatusOK},
		{"metrics без токена", http.MethodGet, "/metrics", "", http.StatusOK},
		{"API без токена", http.MethodGet, "/api/v1/articles/0A1B2C3D", "", http.StatusUnauthorized},
		{"автор читает статью", http.MethodGet, "/api/v1/articles/0A1B2C3D", author, http.StatusOK},
		{"SA не читает статью", http.MethodGet, "/api/v1/articles/0A1B2C3D", payments, http.StatusForbidden},
		{"автор не модерирует", http.MethodPost, "/api/v1/articles/0A1B2C3D/approve", author, http.StatusForbidden},
		{"модератор модерирует", http.MethodPost, "/api/v1/articles/0A1B2C3D/approve", moderator, http.StatusOK},
		{"оплата от платёжного SA", http.MethodPost, "/api/v1/articles/0A1B2C3D/payment-confirmed", payments, http.StatusOK},
		{"оплата от модератора", http.MethodPost, "/api/v1/articles/0A1B2C3D/payment-confirmed", moderator, http.StatusOK},
		{"оплата от автора", http.MethodPost, "/api/v1/articles/0A1B2C3D/payment-confirmed", author, http.StatusForbidden},
		{"оплата от чужого SA", http.MethodPost, "/api/v1/articles/0A1B2C3D/payment-confirmed", otherSA, http.StatusForbidden},
		{"автор не удаляет цену", http.MethodDelete, "/api/v1/pages/page-1/prices/3", author, http.StatusForbidden},
		{"автор не видит переопределения", http.MethodGet, "/api/v1/pages/page-1/prices/overrides", author, http.StatusForbidden},
		{"модератор удаляет цену", http.MethodDelete, "/api/v1/pages/page-1/prices/3", moderator, http.StatusNoContent},
		{"публичный список", http.MethodGet, "/api/v1/pages/page-1/articles", author, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := srv.do(tt.method, tt.path, tt.token); got != tt.want {
				t.Errorf("%s %s: код = %d, ожидалось %d", tt.method, tt.path, got, tt.want)
			}
		})
	}
}

func TestRouter_OpenAPIValidation(t *testing.T) {
	srv := newTestServer(t)
	author := srv.token(t, jwt.MapClaims{"sub": "user-1"})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"id в нижнем регистре", "/api/v1/articles/0a1b2c3d", http.StatusBadRequest},
		{"короткий id", "/api/v1/articles/ABC", http.StatusBadRequest},
		{"limit вне диапазона", "/api/v1/pages/page-1/articles?limit=0", http.StatusBadRequest},
		{"корректный запрос", "/api/v1/pages/page-1/articles?limit=10", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := srv.do(http.MethodGet, tt.path, author); got != tt.want {
				t.Errorf("GET %s: код = %d, ожидалось %d", tt.path, got, tt.want)
			}
		})
	}
}
