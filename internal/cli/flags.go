package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// levelValue is a zstd compression level flag. Zero means unset.
type levelValue int

var _ pflag.Value = (*levelValue)(nil)

func (l *levelValue) String() string {
	if *l == 0 {
		return ""
	}
	return strconv.Itoa(int(*l))
}

func (l *levelValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 22 {
		return fmt.Errorf("compression level must be an integer from 1 to 22")
	}
	*l = levelValue(n)
	return nil
}

func (l *levelValue) Type() string {
	return "level"
}
