package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittobench/pkg/driver/hdfs"
	"github.com/marmos91/dittobench/pkg/remote"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Backend options are validated when they are decoded (see DecodeHDFSOptions).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	g := cfg.Group
	if g.Rank >= g.Size {
		return fmt.Errorf("group: rank %d out of range for size %d", g.Rank, g.Size)
	}
	if g.Type == "tcp" && g.Coordinator == "" {
		return fmt.Errorf("group: coordinator is required for tcp groups")
	}

	r := cfg.Run
	if r.BlockSize%r.TransferSize != 0 {
		return fmt.Errorf("run: block_size %d must be a multiple of transfer_size %d", r.BlockSize, r.TransferSize)
	}
	if r.Check && !r.FilePerProc {
		return fmt.Errorf("run: check requires file_per_proc")
	}

	return nil
}

// Warnings reports settings that pass Validate but are expected to fail at
// run time. backend is the decoded backend configuration, after overrides.
func Warnings(cfg *Config, backend *hdfs.Options) []string {
	var warnings []string

	if !cfg.Run.FilePerProc && cfg.Group.Size > 1 && backend != nil {
		loc, err := remote.ParseLocation(backend.NameNode, int(backend.NameNodePort))
		if err == nil && loc.Scheme == remote.SchemeHDFS {
			warnings = append(warnings, fmt.Sprintf(
				"run: %d ranks share one HDFS file; HDFS grants a single writer per file, so opens on ranks 1..%d will fail in the write phase (set file_per_proc)",
				cfg.Group.Size, cfg.Group.Size-1))
		}
	}

	return warnings
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
