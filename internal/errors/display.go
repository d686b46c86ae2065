package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/viper"
)

// noColor reports whether colored output was turned off
func noColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("PALAUTUS_NO_COLOR") != "" {
		return true
	}
	return viper.IsSet("output.no_color") && viper.GetBool("output.no_color")
}

// DisplayError formats and displays an error on stderr
func DisplayError(err error) {
	DisplayErrorTo(os.Stderr, err)
}

// DisplayErrorTo formats and displays an error on w
func DisplayErrorTo(w io.Writer, err error) {
	color.NoColor = noColor()

	var pe *PalautusError
	if !stderrors.As(err, &pe) {
		fmt.Fprintln(w, color.RedString("Error: %v", err))
		return
	}

	colorFunc := getErrorStyle(pe.Type)

	fmt.Fprintf(w, "\n%s\n", colorFunc(pe.Message))

	if pe.Cause != "" {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(pe.Cause))
	}

	if pe.Environment != "" {
		fmt.Fprintf(w, "   %s %s\n", color.CyanString("Environment:"), color.HiBlackString(pe.Environment))
	}

	if len(pe.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range pe.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	if pe.Verify != "" {
		fmt.Fprintf(w, "\n   %s %s\n", color.BlueString("Verify:"), color.HiWhiteString(pe.Verify))
	}

	if pe.Help != "" {
		fmt.Fprintf(w, "   %s %s\n", color.MagentaString("Help:"), color.HiWhiteString(pe.Help))
	}

	fmt.Fprintln(w)
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration, ErrorTypeValidation, ErrorTypeConflict:
		return color.YellowString
	case ErrorTypeCloud:
		return color.CyanString
	case ErrorTypeFileSystem, ErrorTypeNotFound:
		return color.MagentaString
	default:
		return color.RedString
	}
}

// FormatErrorWithContext formats an error as plain text for CI logs
func FormatErrorWithContext(err error, context map[string]string) string {
	var sb strings.Builder

	var pe *PalautusError
	if !stderrors.As(err, &pe) {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Error: %s\n", pe.Message))
	sb.WriteString(fmt.Sprintf("Type: %s/%s\n", pe.Type, pe.Service))

	if pe.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", pe.Cause))
	}

	if len(context) > 0 {
		sb.WriteString("\nContext:\n")
		for k, v := range context {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}

	if len(pe.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for i, solution := range pe.Solutions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
	}

	if pe.Verify != "" {
		sb.WriteString(fmt.Sprintf("\nVerify: %s\n", pe.Verify))
	}

	if pe.Help != "" {
		sb.WriteString(fmt.Sprintf("Help: %s\n", pe.Help))
	}

	return sb.String()
}
