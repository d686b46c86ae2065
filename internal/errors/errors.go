package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "Authentication"
	ErrorTypeConfiguration  ErrorType = "Configuration"
	ErrorTypeCloud          ErrorType = "Cloud"
	ErrorTypeFileSystem     ErrorType = "FileSystem"
	ErrorTypeNetwork        ErrorType = "Network"
	ErrorTypePermission     ErrorType = "Permission"
	ErrorTypeValidation     ErrorType = "Validation"
	ErrorTypeNotFound       ErrorType = "NotFound"
	ErrorTypeConflict       ErrorType = "Conflict"
	ErrorTypeAborted        ErrorType = "Aborted"
)

// Service names the OpenStack service an error relates to
type Service string

const (
	ServiceKeystone Service = "Keystone"
	ServiceNova     Service = "Nova"
	ServiceCinder   Service = "Cinder"
	ServiceGlance   Service = "Glance"
	ServiceNeutron  Service = "Neutron"
	ServiceLocal    Service = "Local"
)

// PalautusError represents a user-friendly error with actionable guidance
type PalautusError struct {
	Type        ErrorType
	Service     Service
	Message     string
	Cause       string
	Solutions   []string
	Verify      string
	Help        string
	Environment string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *PalautusError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\nError: %s\n", e.Message))

	if e.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", e.Cause))
	}

	if e.Environment != "" {
		sb.WriteString(fmt.Sprintf("Environment: %s\n", e.Environment))
	}

	if len(e.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for _, solution := range e.Solutions {
			sb.WriteString(fmt.Sprintf("  %s\n", solution))
		}
	}

	if e.Verify != "" {
		sb.WriteString(fmt.Sprintf("\nVerify: %s\n", e.Verify))
	}

	if e.Help != "" {
		sb.WriteString(fmt.Sprintf("Help: %s\n", e.Help))
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *PalautusError) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter for custom formatting
func (e *PalautusError) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		fmt.Fprintf(f, "%s", e.Error())
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s/%s] %s", e.Type, e.Service, e.Error())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	}
}

// New creates a new PalautusError
func New(errType ErrorType, service Service, message string) *PalautusError {
	return &PalautusError{
		Type:        errType,
		Service:     service,
		Message:     message,
		Environment: detectEnvironment(),
	}
}

// Wrap creates a PalautusError around err, using err as the cause
func Wrap(err error, errType ErrorType, service Service, message string) *PalautusError {
	e := New(errType, service, message)
	e.Err = err
	if err != nil {
		e.Cause = err.Error()
	}
	return e
}

// WithCause adds cause information
func (e *PalautusError) WithCause(cause string) *PalautusError {
	e.Cause = cause
	return e
}

// WithSolutions adds solution steps
func (e *PalautusError) WithSolutions(solutions ...string) *PalautusError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// WithVerify adds verification command
func (e *PalautusError) WithVerify(verify string) *PalautusError {
	e.Verify = verify
	return e
}

// WithHelp adds help command
func (e *PalautusError) WithHelp(help string) *PalautusError {
	e.Help = help
	return e
}

// detectEnvironment detects the current environment
func detectEnvironment() string {
	ciVars := []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_HOME", "ZUUL_PROJECT"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return "CI/CD detected"
		}
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "Container environment detected"
	}

	return "Development workstation detected"
}

// IsUserError checks if error requires user action
func IsUserError(err error) bool {
	var pe *PalautusError
	return stderrors.As(err, &pe)
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	var pe *PalautusError
	if !stderrors.As(err, &pe) {
		return 1
	}

	switch pe.Type {
	case ErrorTypeConflict:
		return 2 // reconciliation finished, operator action needed
	case ErrorTypeAuthentication, ErrorTypePermission:
		return 77 // EX_NOPERM
	case ErrorTypeConfiguration:
		return 78 // EX_CONFIG
	case ErrorTypeFileSystem, ErrorTypeNotFound:
		return 66 // EX_NOINPUT
	case ErrorTypeNetwork:
		return 69 // EX_UNAVAILABLE
	case ErrorTypeAborted:
		return 75 // EX_TEMPFAIL
	default:
		return 1
	}
}
