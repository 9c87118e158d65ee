package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/uma-arai/venue-reservation/internal/common/utils"
	"github.com/uma-arai/venue-reservation/internal/model"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// Actor は認証基盤が付与したヘッダーから操作者を取り出し、コンテキストに格納します
// ヘッダーがない場合はゲストとして扱います
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := model.Actor{}

		if raw := strings.TrimSpace(r.Header.Get(headerUserID)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, http.StatusBadRequest, "invalid "+headerUserID+" header")
				return
			}

			role := model.RoleUser
			if rawRole := r.Header.Get(headerUserRole); rawRole != "" {
				parsed, err := model.ParseRole(rawRole)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid "+headerUserRole+" header")
					return
				}
				role = parsed
			}
			actor = model.Actor{UserID: id, Role: role}
		}

		next.ServeHTTP(w, r.WithContext(utils.WithActor(r.Context(), actor)))
	})
}

func actorFrom(r *http.Request) model.Actor {
	actor, _ := utils.ActorFromContext(r.Context())
	return actor
}
