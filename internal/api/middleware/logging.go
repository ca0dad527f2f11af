// logging.go — журнал HTTP-запросов Board Module через slog.
// В запись попадают шаблон маршрута chi, sub вызывающего и итог ответа.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder запоминает статус и объём ответа.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// requestTrace — сведения, которые внутренние middleware сообщают журналу.
// JWT-middleware кладёт claims в дочерний контекст, поэтому sub
// передаётся наверх через этот держатель.
type requestTrace struct {
	subject string
}

type traceKey struct{}

// noteSubject сообщает журналу sub аутентифицированного вызывающего.
func noteSubject(ctx context.Context, subject string) {
	if tr, ok := ctx.Value(traceKey{}).(*requestTrace); ok {
		tr.subject = subject
	}
}

// logLevel: 5xx — ERROR, 4xx — WARN, успешные health-проверки — DEBUG.
func logLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// RequestLogger пишет по записи на запрос: метод, путь, шаблон маршрута,
// статус, длительность, размер ответа, remote_addr и sub, если запрос
// прошёл аутентификацию.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			tr := &requestTrace{}
			r = r.WithContext(context.WithValue(r.Context(), traceKey{}, tr))

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if tr.subject != "" {
				attrs = append(attrs, slog.String("sub", tr.subject))
			}
			logger.LogAttrs(r.Context(), logLevel(r.URL.Path, rec.status), "HTTP запрос", attrs...)
		})
	}
}
