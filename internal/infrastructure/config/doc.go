// Package config handles loading and validating StageCue Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// It covers process-level settings only (paths, broker, server, telemetry).
// Operator-editable show configuration — pause flags, device routing, quiet
// windows — is a separate live-reloadable document handled by internal/control.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Venue.Name)
package config
