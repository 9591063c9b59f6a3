package internal

import "errors"

// Warning reports a non-fatal outcome: it prints like an error but the
// process still exits zero. Re-applying an unchanged stack is the main case.
type Warning string

func (warning Warning) Error() string { return string(warning) }

func IsWarning(err error) bool {
	var warning Warning
	return errors.As(err, &warning)
}
