package logger

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var (
	secretParamRegex = regexp.MustCompile(`(?i)(pass|password|key|token|secret)=([^&\s]+)`)
	urlRegex         = regexp.MustCompile(`\b[a-z][a-z0-9+.-]*://[^\s]+`)
)

// SecurityLogger masks secrets and credentials before they reach the log output
type SecurityLogger struct {
	*Logger
}

// NewSecurityLogger creates a new security-aware logger
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		Logger: GetLogger(),
	}
}

// MaskSecret replaces a secret with a short fingerprint so operators can
// still tell two configured values apart
func (sl *SecurityLogger) MaskSecret(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "secret#" + sl.GenerateHash(secret)[:8]
}

// MaskEndpoint keeps scheme, host and path of an endpoint and drops
// credentials and query strings
func (sl *SecurityLogger) MaskEndpoint(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return "endpoint#" + sl.GenerateHash(rawURL)[:8]
	}

	masked := parsedURL.Scheme + "://" + parsedURL.Host + parsedURL.Path
	if parsedURL.User != nil {
		masked += "#" + sl.GenerateHash(parsedURL.User.String())[:8]
	}
	return masked
}

// MaskSensitiveData masks values whose keys look like credentials or endpoints
func (sl *SecurityLogger) MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))

	for key, value := range data {
		lowerKey := strings.ToLower(key)
		str, isString := value.(string)

		switch {
		case !isString:
			masked[key] = value
		case strings.Contains(lowerKey, "secret"),
			strings.Contains(lowerKey, "password"),
			strings.Contains(lowerKey, "token"):
			masked[key] = sl.MaskSecret(str)
		case strings.Contains(lowerKey, "url"),
			strings.Contains(lowerKey, "endpoint"),
			strings.Contains(lowerKey, "addr"):
			masked[key] = sl.MaskEndpoint(str)
		default:
			masked[key] = value
		}
	}

	return masked
}

// MaskLogMessage masks credentials embedded in free-form messages
func (sl *SecurityLogger) MaskLogMessage(message string) string {
	masked := secretParamRegex.ReplaceAllString(message, "${1}=***")
	return urlRegex.ReplaceAllStringFunc(masked, sl.MaskEndpoint)
}

func (sl *SecurityLogger) GenerateHash(data string) string {
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}

// SafeInfo logs info with automatic sensitive data masking
func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	if fields != nil {
		sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Info(sl.MaskLogMessage(msg))
	} else {
		sl.Logger.Info(sl.MaskLogMessage(msg))
	}
}

// SafeWarn logs warning with automatic sensitive data masking
func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	if fields != nil {
		sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Warn(sl.MaskLogMessage(msg))
	} else {
		sl.Logger.Warn(sl.MaskLogMessage(msg))
	}
}

// SafeError logs error with automatic sensitive data masking
func (sl *SecurityLogger) SafeError(msg string, err error, fields map[string]interface{}) {
	maskedFields := map[string]interface{}{
		"error": sl.MaskLogMessage(err.Error()),
	}
	for k, v := range sl.MaskSensitiveData(fields) {
		maskedFields[k] = v
	}
	sl.Logger.WithFields(maskedFields).Error(sl.MaskLogMessage(msg))
}

var (
	securityLoggerInstance *SecurityLogger
	securityLoggerOnce     sync.Once
)

// GetSecurityLogger returns a singleton security logger
func GetSecurityLogger() *SecurityLogger {
	securityLoggerOnce.Do(func() {
		securityLoggerInstance = NewSecurityLogger()
	})
	return securityLoggerInstance
}
