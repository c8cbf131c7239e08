// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and NOIMPORT_* environment variables. It
// covers the host interpreter used for introspection, the sandbox server
// command and the app manifest it serves, logging, and the optional MCP
// transport.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox port: %d\n", cfg.Sandbox.Port)
package config
