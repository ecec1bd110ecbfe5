//go:build !js_eval

package refs

// NewJSAccessor is unavailable without the js_eval build tag and returns nil.
func NewJSAccessor(opts ...JSAccessorOption) MetadataAccessor {
	_ = applyJSAccessorOptions(opts)
	return nil
}

// JSAccessorAvailable reports whether the binary was built with js_eval.
func JSAccessorAvailable() bool {
	return false
}
