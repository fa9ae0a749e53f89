package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// scope is the per-update logging state carried by a context. Each With*
// call stores a modified copy, so parents never see a child's fields.
type scope struct {
	log      *slog.Logger
	rid      string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeOf(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger makes log the logger FromContext returns. A nil log is ignored.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		return withScope(ctx, func(*scope) {})
	}
	return withScope(ctx, func(s *scope) { s.log = log })
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := scopeOf(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID sets the correlation id added to every record logged with ctx.
func WithRID(ctx context.Context, rid string) context.Context {
	return withScope(ctx, func(s *scope) { s.rid = rid })
}

func RIDFrom(ctx context.Context) string { return scopeOf(ctx).rid }

// WithUpdateMeta records which update, user and chat ctx belongs to.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withScope(ctx, func(s *scope) {
		s.updateID, s.userID, s.chatID = updateID, userID, chatID
	})
}

func ChatIDFrom(ctx context.Context) int64 { return scopeOf(ctx).chatID }

// WithHandler names the handler serving ctx. Empty names keep the previous one.
func WithHandler(ctx context.Context, handler string) context.Context {
	return withScope(ctx, func(s *scope) {
		if handler != "" {
			s.handler = handler
		}
	})
}

func HandlerFrom(ctx context.Context) string { return scopeOf(ctx).handler }

// fill copies the scope into a record's fields without overriding
// attributes the caller set explicitly.
func (s scope) fill(fields map[string]any) {
	put := func(key string, v any, ok bool) {
		if _, set := fields[key]; ok && !set {
			fields[key] = v
		}
	}
	put("rid", s.rid, s.rid != "")
	put("user_id", s.userID, s.userID != 0)
	put("update_id", s.updateID, s.updateID != 0)
	put("chat_id", s.chatID, s.chatID != 0)
	put("handler", s.handler, s.handler != "")
}

// BuildRID formats a correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites each numeric part of a BuildRID value in base 36 and
// joins them with dots. Anything else comes back unchanged.
func CompactRID(rid string) string {
	parts := strings.Split(strings.TrimSpace(rid), ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
