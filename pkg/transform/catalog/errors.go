package catalog

import "fmt"

// errRange reports a numeric argument outside its declared range.
func errRange(field, rng string) error {
	return fmt.Errorf("%s out of range %s", field, rng)
}
