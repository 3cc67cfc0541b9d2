// Package encoder writes rendered click tracks to disk.
package encoder

import "metro/audio"

const (
	SampleRate    = audio.SampleRate
	Channels      = audio.Channels
	BitsPerSample = 16
	BlockSize     = 4096
)
