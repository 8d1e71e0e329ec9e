package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittobench/pkg/remote"
)

// FileSystemTestSuite is a contract test suite for remote.FileSystem
// implementations. It exercises the behaviour drivers rely on, not
// implementation details, so it runs unchanged against memory, local, S3
// and (in integration runs) HDFS.
//
// Usage:
//
//	func TestMyFileSystem(t *testing.T) {
//	    suite := &remotetesting.FileSystemTestSuite{
//	        NewFileSystem: func(t *testing.T) remote.FileSystem {
//	            return myfs.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type FileSystemTestSuite struct {
	// NewFileSystem returns a connected filesystem for one test. It may
	// share state across tests; every test uses unique paths.
	NewFileSystem func(t *testing.T) remote.FileSystem

	// Root is prepended to every test path. Defaults to "/".
	Root string

	// NoInPlaceWrites marks filesystems that cannot overwrite in place; tests
	// relying on in-place writes are skipped.
	NoInPlaceWrites bool
}

// Run executes all tests in the suite.
func (suite *FileSystemTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("OpenSemantics", suite.RunOpenTests)
	t.Run("DeleteOperations", suite.RunDeleteTests)
}

var pathCounter atomic.Int64

// testPath returns a unique path below the suite root.
func (suite *FileSystemTestSuite) testPath(name string) string {
	root := suite.Root
	if root == "" {
		root = "/"
	}
	return fmt.Sprintf("%s/suite-%d-%s", trimSlash(root), pathCounter.Add(1), name)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
