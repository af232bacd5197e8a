package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
)

// PayloadSource 请求数据来源
type PayloadSource int

const (
	SourceNamedParams PayloadSource = iota + 1
	SourceJSONBody
	SourceURLEncodedBody
)

func (s PayloadSource) String() string {
	switch s {
	case SourceNamedParams:
		return "named_params"
	case SourceJSONBody:
		return "json_body"
	case SourceURLEncodedBody:
		return "urlencoded_body"
	default:
		return "unknown"
	}
}

// 表单字段名
const (
	fieldName     = "name"
	fieldPhone    = "phone"
	fieldLocation = "location"
)

var errNoUsableKeys = errors.New("未找到 name/phone/location 字段")

// Payload 统一后的提交数据（字段为原始值，未去空白）
type Payload struct {
	Source   PayloadSource
	Name     string
	Phone    string
	Location string
}

// ParsePayload 按顺序尝试：命名参数 → JSON 请求体 → 手动 URL 解码，首个命中即返回
func ParsePayload(params url.Values, body []byte) (*Payload, error) {
	if p, ok := fromNamedParams(params); ok {
		return p, nil
	}

	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.DataParseError, "请求中没有可用数据", nil)
	}

	p, jsonErr := fromJSON(raw)
	if jsonErr == nil {
		return p, nil
	}

	if p, ok := fromURLEncoded(string(raw)); ok {
		return p, nil
	}

	return nil, pkgerrors.New(pkgerrors.DataParseError,
		"请求体既不是有效 JSON 也不是 URL 编码数据: "+truncate(string(raw), 200), jsonErr)
}

func fromNamedParams(params url.Values) (*Payload, bool) {
	if params == nil {
		return nil, false
	}
	_, hasName := params[fieldName]
	_, hasPhone := params[fieldPhone]
	_, hasLocation := params[fieldLocation]
	if !hasName && !hasPhone && !hasLocation {
		return nil, false
	}
	return &Payload{
		Source:   SourceNamedParams,
		Name:     params.Get(fieldName),
		Phone:    params.Get(fieldPhone),
		Location: params.Get(fieldLocation),
	}, true
}

func fromJSON(raw []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoUsableKeys
	}

	p := &Payload{Source: SourceJSONBody}
	found := false
	for key, dst := range map[string]*string{
		fieldName:     &p.Name,
		fieldPhone:    &p.Phone,
		fieldLocation: &p.Location,
	} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		found = true
		*dst = jsonScalar(v)
	}
	if !found {
		return nil, errNoUsableKeys
	}
	return p, nil
}

// jsonScalar 电话号码等字段可能以数字提交
func jsonScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func fromURLEncoded(raw string) (*Payload, bool) {
	p := &Payload{Source: SourceURLEncodedBody}
	found := false

	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		key = decodeComponent(key)
		value = decodeComponent(strings.ReplaceAll(value, "+", " "))

		switch key {
		case fieldName:
			p.Name = value
		case fieldPhone:
			p.Phone = value
		case fieldLocation:
			p.Location = value
		default:
			continue
		}
		found = true
	}
	return p, found
}

// decodeComponent 百分号解码，非法转义时保留原文
func decodeComponent(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// truncate 按字符截断，保证结果仍是合法 UTF-8
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
