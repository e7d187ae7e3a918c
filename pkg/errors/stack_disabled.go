//go:build nostack

package errors

// captureStack is compiled out under the "nostack" build tag.  Errors created
// in this mode carry an empty Stack field.
func captureStack(int) string {
	return ""
}
