//go:build integration

package hdfs

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/marmos91/dittobench/pkg/remote"
	remotetesting "github.com/marmos91/dittobench/pkg/remote/testing"
	"github.com/stretchr/testify/require"
)

// Runs against the cluster named by HDFS_NAMENODE (host:port).
func TestFileSystemSuite_Integration(t *testing.T) {
	nameNode := os.Getenv("HDFS_NAMENODE")
	if nameNode == "" {
		t.Skip("HDFS_NAMENODE not set")
	}

	ctx := context.Background()
	fs, err := Connect(ctx, remote.Descriptor{NameNode: nameNode, User: "root"})
	require.NoError(t, err)
	defer fs.Close()

	root := fmt.Sprintf("/dittobench-test-%d", time.Now().UnixNano())
	require.NoError(t, fs.(*FileSystem).client.MkdirAll(root, 0755))
	defer fs.Delete(ctx, root, true)

	suite := &remotetesting.FileSystemTestSuite{
		NewFileSystem:   func(t *testing.T) remote.FileSystem { return fs },
		Root:            root,
		NoInPlaceWrites: true,
	}
	suite.Run(t)
}
