package dto

import "net/url"

// ── 提交模块请求 ──

// IntakeRequest 原始提交请求：已解码的命名参数 + 原始请求体
type IntakeRequest struct {
	Params url.Values
	Body   []byte
}

// ── 提交模块响应 ──

// IntakeResult 提交结果
type IntakeResult struct {
	Success   bool
	Message   string
	Timestamp string
}
