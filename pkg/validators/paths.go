// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/platform-engineering-labs/azext/pkg/logging"
	"gopkg.in/yaml.v3"
)

// MaxZipArtifactSize is the upload limit for zipped artifacts.
const MaxZipArtifactSize = 50 * 1024 * 1024

// Test plan extensions, in the same order as the test types they belong to.
var allowedTestPlanExtensions = []string{".jmx", ".json", ".py"}

// cleanPath expands a leading ~ and normalizes the result.
func cleanPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", invalidf("Invalid path '%s': %v", path, err)
	}
	return filepath.Clean(expanded), nil
}

// checkPath resolves path and requires it to exist with the right kind and
// access. Shape problems are InvalidArgumentValueError; permission problems
// are FileOperationError.
func checkPath(ctx context.Context, path string, isDir bool) (string, error) {
	logging.LoggerFromContext(ctx).V(1).Info("Validating path", "path", path)

	path, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", invalidf("Provided path '%s' does not exist", path)
		}
		return "", fileErrorf(err, "Failed to inspect path '%s'", path)
	}
	if isDir {
		if !info.IsDir() {
			return "", invalidf("Provided path '%s' is not a directory", path)
		}
		if !canAccess(path, info, accessWrite|accessExecute) {
			return "", fileErrorf(nil, "Provided path '%s' is not writable or executable", path)
		}
		return path, nil
	}
	if !info.Mode().IsRegular() {
		return "", invalidf("Provided path '%s' is not a file", path)
	}
	if !canAccess(path, info, accessRead) {
		return "", fileErrorf(nil, "Provided path '%s' is not readable", path)
	}
	return path, nil
}

// Download prepares the output directory for downloaded files. With Force
// the directory is created when missing; otherwise it must already be a
// writable directory.
func Download(ctx context.Context, ns *Namespace) error {
	if ns.Path == nil {
		return invalidf("Invalid path type: a path is required")
	}
	path, err := cleanPath(*ns.Path)
	if err != nil {
		return err
	}
	ns.Path = &path

	if ns.Force {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			logging.LoggerFromContext(ctx).Info("Directory does not exist, creating it because force is set", "path", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fileErrorf(err, "Failed to create directory '%s'", path)
		}
		return nil
	}
	return DirPath(ctx, ns)
}

// DirPath requires Path to be an existing writable directory.
func DirPath(ctx context.Context, ns *Namespace) error {
	if ns.Path == nil {
		return invalidf("Invalid path type: a path is required")
	}
	path, err := checkPath(ctx, *ns.Path, true)
	if err != nil {
		return err
	}
	ns.Path = &path
	return nil
}

// FilePath requires Path to be an existing readable file.
func FilePath(ctx context.Context, ns *Namespace) error {
	if ns.Path == nil {
		return invalidf("Invalid path type: a path is required")
	}
	path, err := checkPath(ctx, *ns.Path, false)
	if err != nil {
		return err
	}
	ns.Path = &path
	return nil
}

// UploadFile requires Path to be a readable file that fits the limits of
// FileType.
func UploadFile(ctx context.Context, ns *Namespace) error {
	if err := FilePath(ctx, ns); err != nil {
		return err
	}
	if ns.FileType == nil {
		return nil
	}
	return CheckFileStats(ctx, *ns.Path, *ns.FileType)
}

// CheckFileStats enforces the size limit on zipped artifacts.
func CheckFileStats(ctx context.Context, path, fileType string) error {
	if fileType != FileTypeZippedArtifacts {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileErrorf(err, "Failed to inspect path '%s'", path)
	}
	logging.LoggerFromContext(ctx).V(1).Info("Zip artifact size", "path", path, "bytes", info.Size())
	if info.Size() > MaxZipArtifactSize {
		return fileErrorf(nil, "Provided ZIP artifact '%s' exceeds size limit of 50 MB", path)
	}
	return nil
}

// TestPlanPath requires the test plan to be a readable .jmx, .json or .py file.
func TestPlanPath(ctx context.Context, ns *Namespace) error {
	if ns.TestPlan == nil {
		return nil
	}
	path, err := checkPath(ctx, *ns.TestPlan, false)
	if err != nil {
		return err
	}
	ns.TestPlan = &path

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(allowedTestPlanExtensions, ext) {
		return invalidf("Invalid test plan file extension: %s. Allowed values: %s for %s test types respectively",
			filepath.Ext(path), strings.Join(allowedTestPlanExtensions, ", "), strings.Join(allowedTestTypes, ", "))
	}
	return nil
}

// LoadTestConfigFile requires the config file to be readable YAML. When the
// file sets autoStop, its criteria are checked as well.
func LoadTestConfigFile(ctx context.Context, ns *Namespace) error {
	if ns.LoadTestConfigFile == nil {
		return nil
	}
	path, err := checkPath(ctx, *ns.LoadTestConfigFile, false)
	if err != nil {
		return err
	}
	ns.LoadTestConfigFile = &path

	data, err := os.ReadFile(path)
	if err != nil {
		return fileErrorf(err, "Failed to read YAML file: %s", path)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fileErrorf(err, "Failed to read YAML file: %s", path)
	}
	if autostop, ok := doc["autoStop"]; ok {
		return AutostopConfig(autostop)
	}
	return nil
}
