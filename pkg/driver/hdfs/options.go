package hdfs

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittobench/pkg/driver"
	"github.com/marmos91/dittobench/pkg/remote"
)

// Options is the backend configuration of the HDFS driver.
//
// The connection is populated lazily by the first operation that needs it
// and lives in the Options, so drivers built from cloned Options share it.
type Options struct {
	// DirectIO adds the platform O_DIRECT flag to every open.
	DirectIO bool `mapstructure:"odirect" yaml:"odirect"`

	// User is the identity the client connects as. Empty lets the remote
	// client pick.
	User string `mapstructure:"user" yaml:"user"`

	// NameNode is "default", a host, or a URI (hdfs://, file://, mem://,
	// s3a://).
	NameNode string `mapstructure:"name_node" validate:"required" yaml:"name_node"`

	// NameNodePort overrides the port of NameNode when non-zero.
	NameNodePort int64 `mapstructure:"name_node_port" validate:"gte=0,lte=65535" yaml:"name_node_port"`

	// Replicas is the replication factor of created files. 0 uses the
	// filesystem default.
	Replicas int64 `mapstructure:"replicas" validate:"gte=0,lte=512" yaml:"replicas"`

	// BlockSize is the block size of created files. 0 uses the filesystem
	// default.
	BlockSize int64 `mapstructure:"block_size" validate:"gte=0" yaml:"block_size"`

	fs remote.FileSystem
}

// NewOptions returns a copy of prior, or the defaults when prior is nil.
// A copy shares prior's connection, if any.
func NewOptions(prior *Options) *Options {
	if prior != nil {
		clone := *prior
		return &clone
	}
	return &Options{
		User:     os.Getenv("USER"),
		NameNode: remote.DefaultNameNode,
	}
}

// Validate checks the option values.
func (o *Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid hdfs options: %w", err)
	}
	return nil
}

// Connected reports whether a connection has been established.
func (o *Options) Connected() bool {
	return o.fs != nil
}

// Table returns the option table bound to o.
func (o *Options) Table() []driver.Option {
	return []driver.Option{
		driver.FlagOption("hdfs.odirect", "Direct I/O Mode", &o.DirectIO),
		driver.StringOption("hdfs.user", "Username", &o.User),
		driver.StringOption("hdfs.name_node", "Namenode", &o.NameNode),
		driver.IntOption("hdfs.replicas", "Number of replicas", &o.Replicas),
		driver.IntOption("hdfs.block_size", "Blocksize", &o.BlockSize),
		driver.IntOption("hdfs.name_node_port", "Namenode port", &o.NameNodePort),
	}
}

func (o *Options) descriptor() remote.Descriptor {
	return remote.Descriptor{
		NameNode:         o.NameNode,
		Port:             int(o.NameNodePort),
		User:             o.User,
		ForceNewInstance: true,
	}
}
