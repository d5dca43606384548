package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// StoreError enhances secret store errors with context
func StoreError(store string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s store error during %s", store, operation),
		Details:    err.Error(),
		Suggestion: getStoreSuggestion(store, err),
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on store and error
func getStoreSuggestion(store string, err error) string {
	errStr := strings.ToLower(err.Error())

	switch store {
	case "azure.keyvault":
		switch {
		case strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "403"):
			return "Check Key Vault access policies: 'Get' and 'List' permissions are required for secrets"
		case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401"):
			return "Check authentication: verify managed identity, service principal, or Azure CLI login"
		case strings.Contains(errStr, "no such host"):
			return "Check the vault URL format and that the Key Vault exists"
		case strings.Contains(errStr, "throttled") || strings.Contains(errStr, "toomanyrequests") || strings.Contains(errStr, "429"):
			return "Key Vault throttled the request. Increase the cache TTL to reduce list and get calls"
		case strings.Contains(errStr, "tenant"):
			return "Check that the tenant ID is correct and the application is registered"
		}

	case "aws.secretsmanager":
		switch {
		case strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization"):
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		case strings.Contains(errStr, "accessdenied"):
			return "Check IAM permissions for secretsmanager:ListSecrets and secretsmanager:GetSecretValue"
		case strings.Contains(errStr, "throttling"):
			return "AWS rate limit exceeded. Increase the cache TTL to reduce API calls"
		}

	case "aws.ssm":
		switch {
		case strings.Contains(errStr, "accessdenied"):
			return "Check IAM permissions: ssm:GetParameter, ssm:DescribeParameters, and kms:Decrypt for SecureString parameters"
		case strings.Contains(errStr, "invalidkeyid"):
			return "The KMS key for this SecureString parameter may not exist or you lack kms:Decrypt permission"
		case strings.Contains(errStr, "throttl"):
			return "AWS rate limit exceeded. Increase the cache TTL to reduce API calls"
		case strings.Contains(errStr, "credentials"):
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}

	case "akeyless":
		switch {
		case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401"):
			return "Check store.akeyless.access_id and the access key or cloud identity it authenticates with"
		case strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "403"):
			return "The auth method's role needs read and list access to the folder"
		}

	case "gcp.secretmanager":
		switch {
		case strings.Contains(errStr, "permissiondenied") || strings.Contains(errStr, "permission denied"):
			return "Check IAM permissions: secretmanager.secrets.list, secretmanager.versions.access"
		case strings.Contains(errStr, "unauthenticated"):
			return "Check authentication: set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
		case strings.Contains(errStr, "resourceexhausted"):
			return "Request was throttled. Increase the cache TTL to reduce API calls"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise store.timeout_ms"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and store.url"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
