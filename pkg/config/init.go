package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittobench Configuration File
#
# Every key can be overridden with an environment variable named
# DITTOBENCH_<SECTION>_<KEY>, for example DITTOBENCH_RUN_SEGMENTS=4.
# Backend options can also be set per run with -o hdfs.<option>=<value>.
#
# backend.hdfs.name_node selects the filesystem:
#   default            name nodes from HADOOP_CONF_DIR / HADOOP_HOME
#   host, hdfs://host  an HDFS name node (port from name_node_port, else 8020)
#   file:///dir        a local directory (odirect uses O_DIRECT)
#   mem://name         an in-process filesystem, for dry runs
#   s3a://bucket/pfx   an S3 bucket (AWS_* and DITTOBENCH_S3_ENDPOINT)

`

// InitConfig writes a sample configuration file to the default location.
//
// Returns the path written. Fails when the file exists, unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML below a commented header.
func generateYAMLWithComments(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var b strings.Builder
	b.WriteString(configHeader)
	b.Write(data)
	return b.String(), nil
}
