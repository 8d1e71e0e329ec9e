// Package dial picks a remote.FileSystem implementation from the scheme of
// a descriptor's name node.
package dial

import (
	"context"
	"fmt"

	"github.com/marmos91/dittobench/pkg/remote"
	"github.com/marmos91/dittobench/pkg/remote/hdfs"
	"github.com/marmos91/dittobench/pkg/remote/local"
	"github.com/marmos91/dittobench/pkg/remote/memory"
	"github.com/marmos91/dittobench/pkg/remote/s3"
)

var connectors = map[string]remote.Connector{
	remote.SchemeHDFS:   hdfs.Connect,
	remote.SchemeFile:   local.Connect,
	remote.SchemeMemory: memory.Connect,
	remote.SchemeS3A:    s3.Connect,
}

// Connect is a remote.Connector that dispatches on scheme. Bare hosts and
// "default" are HDFS.
func Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	loc, err := remote.ParseLocation(desc.NameNode, desc.Port)
	if err != nil {
		return nil, err
	}

	connect, ok := connectors[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported name node scheme %q in %q", loc.Scheme, desc.NameNode)
	}
	return connect(ctx, desc)
}

// Schemes returns the supported schemes.
func Schemes() []string {
	return []string{remote.SchemeHDFS, remote.SchemeFile, remote.SchemeMemory, remote.SchemeS3A}
}
