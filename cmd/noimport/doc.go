// Package main is the entry point for noimport.
//
// noimport lists the standard library modules, functions and attributes
// that import on the host interpreter but cannot be accessed inside the App
// Engine sandbox. It probes the host, generates a probe app, runs it under
// dev_appserver.py, prints the sandbox's answer on stdout and the modules
// missing on the host on stderr. It takes no flags; see config.yaml.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
