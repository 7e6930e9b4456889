package i18n

var catalogs = map[string]map[string]string{
	LocaleZhCN: {
		"error.bad_request":                  "请求参数错误",
		"error.unauthorized":                 "未授权",
		"error.forbidden":                    "无权限",
		"error.jwt_secret_missing":           "服务端未配置鉴权密钥",
		"error.auth_header_missing":          "缺少 Authorization 请求头",
		"error.auth_header_invalid":          "Authorization 请求头格式错误",
		"error.token_invalid":                "令牌无效或已过期",
		"error.internal":                     "服务器内部错误",
		"error.rate_limited":                 "操作过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable":       "限流服务暂不可用",
		"error.payment_not_found":            "收款记录不存在",
		"error.payment_fetch_failed":         "获取收款记录失败",
		"error.payment_not_verifiable":       "该收款当前不可重新核验",
		"error.verifier_disabled":            "链上核验未启用",
		"error.verification_dispatch_failed": "核验派发失败",
		"error.observer_busy":                "观察器正在执行，请稍后重试",
		"error.observer_tick_failed":         "观察器执行失败",
		"error.sweep_in_progress":            "归集正在进行中",
		"error.sweep_limit_invalid":          "归集数量不合法",
		"error.vault_not_configured":         "未配置金库地址",
		"error.sweep_failed":                 "归集执行失败",
		"error.sweep_audit_fetch_failed":     "获取归集审计失败",
		"error.time_range_invalid":           "时间范围格式错误",
		"error.service_unavailable":          "依赖服务不可用",
	},
	LocaleEnUS: {
		"error.bad_request":                  "invalid request",
		"error.unauthorized":                 "unauthorized",
		"error.forbidden":                    "forbidden",
		"error.jwt_secret_missing":           "auth secret is not configured",
		"error.auth_header_missing":          "missing Authorization header",
		"error.auth_header_invalid":          "invalid Authorization header",
		"error.token_invalid":                "token invalid or expired",
		"error.internal":                     "internal server error",
		"error.rate_limited":                 "too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":       "rate limiter unavailable",
		"error.payment_not_found":            "payment not found",
		"error.payment_fetch_failed":         "failed to load payments",
		"error.payment_not_verifiable":       "payment cannot be re-verified now",
		"error.verifier_disabled":            "on-chain verification is disabled",
		"error.verification_dispatch_failed": "failed to dispatch verification",
		"error.observer_busy":                "observer tick already running",
		"error.observer_tick_failed":         "observer tick failed",
		"error.sweep_in_progress":            "sweep already in progress",
		"error.sweep_limit_invalid":          "invalid sweep limit",
		"error.vault_not_configured":         "vault address is not configured",
		"error.sweep_failed":                 "sweep failed",
		"error.sweep_audit_fetch_failed":     "failed to load sweep audit",
		"error.time_range_invalid":           "invalid time range",
		"error.service_unavailable":          "dependency unavailable",
	},
}
