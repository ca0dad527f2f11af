// Пакет membership — HTTP-клиент сервиса членства страниц.
// Отвечает на вопрос «является ли пользователь активным участником страницы»,
// ответы кэшируются в LRU с TTL.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша членства.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_membership_cache_hits_total",
		Help: "Общее количество попаданий в кэш членства.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_membership_cache_misses_total",
		Help: "Общее количество промахов кэша членства.",
	})
)

// memberResponse — ответ сервиса членства.
type memberResponse struct {
	Active bool `json:"active"`
}

// Client — HTTP-клиент сервиса членства.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *expirable.LRU[string, bool]
	logger     *slog.Logger
}

// New создаёт клиент сервиса членства.
// baseURL — базовый URL сервиса (BM_MEMBERSHIP_URL).
// cacheSize и cacheTTL — параметры кэша ответов.
func New(baseURL string, timeout time.Duration, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      expirable.NewLRU[string, bool](cacheSize, nil, cacheTTL),
		logger:     logger.With(slog.String("component", "membership_client")),
	}
}

func cacheKey(pageID, callerID string) string {
	return pageID + "\x00" + callerID
}

// IsActiveMember проверяет членство пользователя на странице.
// GET /api/v1/pages/{pageId}/members/{callerId}
// 404 — не участник. Прочие ошибки не кэшируются.
func (c *Client) IsActiveMember(ctx context.Context, pageID, callerID string) (bool, error) {
	key := cacheKey(pageID, callerID)
	if active, ok := c.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return active, nil
	}
	cacheMissesTotal.Inc()

	reqURL := fmt.Sprintf("%s/api/v1/pages/%s/members/%s",
		c.baseURL, url.PathEscape(pageID), url.PathEscape(callerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("создание запроса членства: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return false, fmt.Errorf("запрос членства к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.cache.Add(key, false)
		return false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("сервис членства вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var mr memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return false, fmt.Errorf("декодирование ответа членства: %w", err)
	}

	c.cache.Add(key, mr.Active)
	c.logger.Debug("Членство получено",
		slog.String("page_id", pageID),
		slog.String("caller_id", callerID),
		slog.Bool("active", mr.Active),
	)
	return mr.Active, nil
}
