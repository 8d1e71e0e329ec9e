//go:build !linux

package remote

// ODirect is zero where the platform has no O_DIRECT open flag.
const ODirect = 0
