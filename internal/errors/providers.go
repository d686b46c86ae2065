package errors

import (
	"fmt"
	"strings"
)

// OpenStackAuthError creates a Keystone authentication error with guidance
func OpenStackAuthError(originalErr error) *PalautusError {
	err := New(ErrorTypeAuthentication, ServiceKeystone, "OpenStack authentication failed")
	err.Err = originalErr

	if originalErr != nil {
		errStr := originalErr.Error()
		switch {
		case strings.Contains(errStr, "OS_AUTH_URL") || strings.Contains(errStr, "Missing environment variable"):
			err.WithCause("OpenStack credentials are not set in the environment")
		case strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized"):
			err.WithCause("Keystone rejected the credentials")
		default:
			err.WithCause(errStr)
		}
	}

	if err.Environment == "CI/CD detected" {
		err.WithSolutions(
			"Export OS_AUTH_URL, OS_USERNAME, OS_PASSWORD and OS_PROJECT_NAME from your CI secrets",
			"Or point openstack.env_file at a generated openrc env file",
		)
	} else {
		err.WithSolutions(
			"source ./openrc.sh",
			"Or set openstack.env_file in ~/.palautus/config.yaml to an env file with OS_* variables",
		)
	}

	err.WithVerify("openstack token issue")
	err.WithHelp("palautus --help")
	return err
}

// EndpointError creates an error for a service missing from the catalog
func EndpointError(service Service, region string, originalErr error) *PalautusError {
	err := New(ErrorTypeCloud, service, fmt.Sprintf("%s endpoint not available", service))
	err.Err = originalErr
	if originalErr != nil {
		err.WithCause(originalErr.Error())
	}
	if region != "" {
		err.WithSolutions(fmt.Sprintf("Check that region %q offers %s", region, service))
	}
	err.WithSolutions(
		"Set openstack.region or OS_REGION_NAME to a region with this service",
		"Limit reconcile.kinds to the services your cloud provides",
	)
	err.WithVerify("openstack catalog list")
	return err
}

// ConfigError creates a configuration error
func ConfigError(originalErr error) *PalautusError {
	err := Wrap(originalErr, ErrorTypeConfiguration, ServiceLocal, "Invalid configuration")
	err.WithSolutions(
		"Check ~/.palautus/config.yaml or the file passed with --config",
		"Run 'palautus config init' to write a default configuration",
	)
	return err
}

// SnapshotNotFoundError creates an error for an unknown snapshot reference
func SnapshotNotFoundError(ref string) *PalautusError {
	return New(ErrorTypeNotFound, ServiceLocal, fmt.Sprintf("Snapshot %q not found", ref)).
		WithSolutions(
			"List stored snapshots with 'palautus snapshot list'",
			"Capture a new baseline with 'palautus snapshot create --name <name>'",
		)
}

// ReportNotFoundError creates an error for an unknown report reference
func ReportNotFoundError(ref string) *PalautusError {
	return New(ErrorTypeNotFound, ServiceLocal, fmt.Sprintf("Report %q not found", ref)).
		WithSolutions("List stored reports with 'palautus report list'")
}

// DirectiveError creates an error for an unrecognized rollback directive
func DirectiveError(originalErr error, known []string) *PalautusError {
	return Wrap(originalErr, ErrorTypeValidation, ServiceLocal, "Unknown rollback directive").
		WithSolutions(fmt.Sprintf("Use one of: %s", strings.ToLower(strings.Join(known, ", "))))
}

// ConflictsError reports that a run left conflicts for the operator
func ConflictsError(conflicts int, reportID string) *PalautusError {
	return New(ErrorTypeConflict, ServiceLocal, fmt.Sprintf("%d conflict(s) need operator action", conflicts)).
		WithSolutions(
			fmt.Sprintf("Review them with 'palautus report show %s'", reportID),
			"Resolve each conflict manually, then run reconcile again",
		)
}

// AbortedError reports a run stopped by the rollback directive
func AbortedError(originalErr error, reportID string) *PalautusError {
	err := Wrap(originalErr, ErrorTypeAborted, ServiceLocal, "Reconciliation aborted")
	err.WithSolutions(
		fmt.Sprintf("The partial report was saved as %s", reportID),
		"Fix the failing resource and run reconcile again, or use --directive continue",
	)
	return err
}

// PermissionError creates a permission error
func PermissionError(service Service, resource string) *PalautusError {
	return New(ErrorTypePermission, service, fmt.Sprintf("Permission denied for %s", resource)).
		WithCause("The OpenStack user lacks the role required for this operation").
		WithSolutions(
			"Use credentials with the admin role for the migrated projects",
			"Check the service policy.yaml for the denied action",
		).
		WithVerify("openstack role assignment list --user $OS_USERNAME --names")
}

// NetworkError creates a network connectivity error
func NetworkError(service Service, endpoint string) *PalautusError {
	return New(ErrorTypeNetwork, service, fmt.Sprintf("Cannot reach %s", endpoint)).
		WithSolutions(
			"Check connectivity to the OpenStack API endpoints",
			"Verify proxy settings (HTTPS_PROXY, NO_PROXY)",
		)
}
