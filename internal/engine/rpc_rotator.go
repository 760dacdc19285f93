package engine

import "net/url"

// roundRobin 轮询游标
// 调用方必须持有池锁
type roundRobin struct {
	index int
}

// next picks index % n and advances the cursor within [0, n).
func (r *roundRobin) next(n int) int {
	i := r.index % n
	r.index = (i + 1) % n
	return i
}

// MaskURL 掩码 URL（保护密钥）
// Authenticated URLs carry API keys in the path or query, so only scheme and
// host survive.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:10] + "..." + raw[len(raw)-10:]
		}
		return raw
	}
	masked := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		masked += "/..."
	}
	if u.RawQuery != "" {
		masked += "?..."
	}
	return masked
}
