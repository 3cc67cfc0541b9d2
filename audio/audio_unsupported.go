//go:build !linux && !darwin && !windows

package audio

import (
	"fmt"
	"runtime"
)

func NewContext() (Context, error) {
	return nil, fmt.Errorf("no audio backend for %s", runtime.GOOS)
}
