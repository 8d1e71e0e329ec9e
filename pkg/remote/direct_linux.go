//go:build linux

package remote

import "golang.org/x/sys/unix"

// ODirect is the open flag requesting unbuffered I/O.
const ODirect = unix.O_DIRECT
