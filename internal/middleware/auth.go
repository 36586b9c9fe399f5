// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/productguard/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// APITokenFinder はAPIトークンの照合に必要なインターフェース。
// repository.APITokenRepositoryの部分集合として定義する。
type APITokenFinder interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.APIToken, error)
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
}

// HashToken はAPIトークンのSHA-256ハッシュを16進文字列で返す。
// トークン本体はデータベースに保存されず、このハッシュで照合される。
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewTokenAuthMiddleware はAuthorizationヘッダのBearerトークンを
// SHA-256ハッシュで照合するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewTokenAuthMiddleware(tokenFinder APITokenFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダからBearerトークンを取得
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || auth == prefix {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			rawToken := auth[len(prefix):]

			// 2. ハッシュで照合
			token, err := tokenFinder.FindByTokenHash(r.Context(), HashToken(rawToken))
			if err != nil {
				slog.Error("failed to find API token",
					slog.String("error", err.Error()),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if token == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// 3. 最終使用日時の更新はベストエフォート
			if err := tokenFinder.TouchLastUsed(r.Context(), token.ID, time.Now()); err != nil {
				slog.Warn("failed to touch API token",
					slog.String("token_id", token.ID),
					slog.String("error", err.Error()),
				)
			}

			// 4. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, token.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
