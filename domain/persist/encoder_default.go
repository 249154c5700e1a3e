//go:build !gocv

package persist

// DefaultEncoder returns the mask encoder compiled into this build.
func DefaultEncoder() Encoder { return PNGEncoder{} }
