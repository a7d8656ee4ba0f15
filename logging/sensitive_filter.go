package logging

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// RedactedPlaceholder replaces secrets in log output.
const RedactedPlaceholder = "[REDACTED]"

// Model URLs are often pre-signed or carry access tokens.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`hf_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
	regexp.MustCompile(`(?i)((?:access_)?token|api_?key|secret|password|sig|signature|x-amz-signature|x-amz-credential|x-goog-signature)=[^&\s"']+`),
	regexp.MustCompile(`(https?://)[^/@\s:]+(?::[^/@\s]*)?@`),
}

// sensitiveKeys marks field names whose values are never logged.
var sensitiveKeys = []string{"TOKEN", "PASSWORD", "SECRET", "API_KEY", "APIKEY", "AUTHORIZATION"}

// RedactSensitiveData replaces tokens, signed query parameters and URL
// credentials in value.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, p := range sensitivePatterns {
		value = p.ReplaceAllStringFunc(value, redactMatch(p))
	}
	return value
}

func redactMatch(p *regexp.Regexp) func(string) string {
	return func(m string) string {
		sub := p.FindStringSubmatch(m)
		switch {
		case strings.HasPrefix(m, "http") && len(sub) > 1:
			return sub[1] + RedactedPlaceholder + "@"
		case strings.Contains(m, "=") && len(sub) > 1:
			return sub[1] + "=" + RedactedPlaceholder
		default:
			return RedactedPlaceholder
		}
	}
}

// RedactURL returns rawURL with credentials and query values removed. Query
// keys are kept so logs still show which parameters were present.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return RedactSensitiveData(rawURL)
	}
	hadUser := u.User != nil
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			keys[i] = url.QueryEscape(k) + "=" + RedactedPlaceholder
		}
		u.RawQuery = strings.Join(keys, "&")
	}

	s := u.String()
	if hadUser {
		s = strings.Replace(s, "://", "://"+RedactedPlaceholder+"@", 1)
	}
	return s
}

// IsSensitiveField reports whether a field name indicates a secret.
func IsSensitiveField(name string) bool {
	upper := strings.ToUpper(name)
	for _, k := range sensitiveKeys {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// redactField scrubs one field: sensitive names lose their value entirely,
// string values are scanned for secrets.
func redactField(f zapcore.Field) zapcore.Field {
	if IsSensitiveField(f.Key) {
		return zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: RedactedPlaceholder}
	}
	if f.Type == zapcore.StringType {
		f.String = RedactSensitiveData(f.String)
	}
	return f
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = redactField(f)
	}
	return out
}

// redactingCore scrubs messages and string fields before they reach the
// wrapped core.
type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps core so no entry written through it carries secrets.
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = RedactSensitiveData(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}
