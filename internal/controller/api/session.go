package api

import (
	"net/http"

	"coinflip-server/internal/auth"
	"coinflip-server/internal/common/response"
)

// SessionController 登录态接口：/api/auth/*
type SessionController struct{ baseController }

// Logout POST /api/auth/logout 将当前 Token 加入黑名单直到其过期
func (c *SessionController) Logout() {
	claims, _ := c.Ctx.Input.GetData("jwt_claims").(*auth.JWTClaims)
	token, err := auth.BearerToken(c.Ctx.Input.Header("Authorization"))
	if claims == nil || claims.ExpiresAt == nil || err != nil {
		response.Error(&c.Controller, http.StatusUnauthorized, response.CodeUnauthorized, c.traceID())
		return
	}
	if err := auth.RevokeToken(c.reqCtx(), token, claims.ExpiresAt.Time); err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, map[string]any{
		"account_id": claims.AccountID,
		"revoked":    true,
	}, c.traceID())
}
