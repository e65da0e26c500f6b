//go:build camhal_debug

package hal

const debugAssertions = true
