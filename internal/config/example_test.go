package config_test

import (
	"fmt"

	"github.com/teamclock/teamclock/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Web Port:", cfg.Web.Port)
	fmt.Println("Access TTL:", cfg.Auth.AccessTTL)
	fmt.Println("Integration Timeout:", cfg.Integrations.Timeout)
	// Output:
	// Web Port: 8000
	// Access TTL: 30m0s
	// Integration Timeout: 10s
}

// Example of setting the web port with validation
func ExampleConfig_SetWebPort() {
	cfg := config.Default()

	if err := cfg.SetWebPort(9090); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Address:", cfg.Address())
	}

	if err := cfg.SetWebPort(70000); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Address: localhost:9090
	// Error: port must be between 1 and 65535, got 70000
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	}

	cfg.Auth.Secret = "a-long-enough-signing-secret"
	if err := cfg.Validate(); err == nil {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Invalid config: auth secret must be at least 16 characters
	// Configuration is valid
}
