// Package config loads conversion settings from YAML files and provides
// defaults. Command-line flags override anything loaded here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents a conversion configuration loaded from YAML.
type Config struct {
	// Input parameters
	Input struct {
		// Dir is the directory holding the DICOM slice files of one series
		Dir string `yaml:"dir"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Volume is the output volume name; ".nhdr"/".nrrd" select NRRD,
		// ".nii"/".nii.gz" select the FSL file set
		Volume string `yaml:"volume"`

		// BValues and BVectors override the derived FSL sidecar names
		BValues  string `yaml:"bValues"`
		BVectors string `yaml:"bVectors"`

		// FSL forces the split NIfTI+bval+bvec output
		FSL bool `yaml:"fsl"`

		// LogFile, when set, mirrors logs into a rotated file
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`

	// Gradient handling parameters
	Gradients struct {
		// OverrideFile replaces extracted gradients with vectors from a file
		OverrideFile string `yaml:"overrideFile"`

		// UseIdentityMeasurementFrame rotates gradients into the identity frame
		UseIdentityMeasurementFrame bool `yaml:"useIdentityMeasurementFrame"`

		// UseBMatrixGradientDirections derives directions from the b-matrix
		UseBMatrixGradientDirections bool `yaml:"useBMatrixGradientDirections"`

		// SmallGradientThreshold treats shorter reported gradients as baseline
		SmallGradientThreshold float64 `yaml:"smallGradientThreshold"`
	} `yaml:"gradients"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.Gradients.SmallGradientThreshold = 0.2
	return cfg
}

// Load reads a YAML configuration file, applying defaults for anything
// unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
