package mlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/logger"
)

type ctxKey struct{}

// WithLogger stores a request-scoped logger in the context.
func WithLogger(ctx context.Context, l *logger.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// L returns the request-scoped logger, or a throwaway one when absent.
func L(ctx context.Context) *logger.Logger {
	if ctx == nil {
		return logger.NewLogger("", "")
	}
	l, ok := ctx.Value(ctxKey{}).(*logger.Logger)
	if !ok || l == nil {
		return logger.NewLogger("", "")
	}

	return l
}

type ResponseWithLogger struct {
	w      http.ResponseWriter
	r      *http.Request
	logger *logger.Logger
}

func NewResponseWithLogger(w http.ResponseWriter, r *http.Request, xSid string, masking ...logger.MaskingRule) *ResponseWithLogger {
	return &ResponseWithLogger{
		w:      w,
		r:      r,
		logger: InitLog(r, xSid, masking...),
	}
}

func (rwl *ResponseWithLogger) Logger() *logger.Logger {
	return rwl.logger
}

func (rwl *ResponseWithLogger) ResponseJson(status int, data any, masking ...logger.MaskingRule) {
	rwl.w.Header().Set("Content-Type", "application/json")
	rwl.w.WriteHeader(status)
	json.NewEncoder(rwl.w).Encode(data)

	rwl.logger.Info(logAction.OUTBOUND(rwl.r.Method+" -> "+rwl.r.URL.Path+" response"), map[string]any{
		"status": status,
		"body":   data,
	}, masking...)

	rwl.logger.Flush(status, http.StatusText(status))
}

// ResponseJsonError writes the sanitized body to the caller while the real
// cause only reaches the detail log.
func (rwl *ResponseWithLogger) ResponseJsonError(status int, data any, cause error, masking ...logger.MaskingRule) {
	rwl.w.Header().Set("Content-Type", "application/json")
	rwl.w.WriteHeader(status)
	json.NewEncoder(rwl.w).Encode(data)

	detail := map[string]any{
		"status": status,
		"body":   data,
	}
	if cause != nil {
		detail["cause"] = cause.Error()
	}
	rwl.logger.Error(logAction.OUTBOUND(rwl.r.Method+" -> "+rwl.r.URL.Path+" response"), detail, masking...)

	rwl.logger.FlushError(status, http.StatusText(status))
}

func (rwl *ResponseWithLogger) Redirect(location string) {
	rwl.logger.Info(logAction.OUTBOUND(rwl.r.Method+" -> "+rwl.r.URL.Path+" redirect"), map[string]any{
		"status":   http.StatusFound,
		"location": location,
	})

	rwl.logger.Flush(http.StatusFound, http.StatusText(http.StatusFound))
	http.Redirect(rwl.w, rwl.r, location, http.StatusFound)
}

func InitLog(r *http.Request, xSid string, masking ...logger.MaskingRule) *logger.Logger {
	l := L(r.Context())
	l.SetSessionID(xSid)

	headers := make(map[string]string)
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ", ")
	}

	var body map[string]any
	if r.Method != http.MethodGet && r.Body != nil {
		bodyBytes, err := io.ReadAll(r.Body)
		if err == nil {
			// Restore the request body so it can be read again later
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			json.Unmarshal(bodyBytes, &body)
		}
	}

	rules := append([]logger.MaskingRule{
		{Field: "headers.Authorization", Type: logger.MaskingTypeFull},
		{Field: "headers.Cookie", Type: logger.MaskingTypeFull},
	}, masking...)

	l.Info(logAction.INBOUND(r.Method+" -> "+r.URL.Path), map[string]any{
		"method":  r.Method,
		"url":     r.URL.String(),
		"headers": headers,
		"query":   r.URL.Query(),
		"body":    body,
	}, rules...)
	return l
}
