// Package sandbox runs the probe program inside the sandbox server.
//
// It renders the probe program and the app manifest, lays them out in a
// temporary Workspace, starts the server through a Launcher that watches
// its stderr for the readiness marker, and reads the report back with a
// Fetcher. Launch and Kill are unix-only: the server runs in its own
// process group and is stopped with SIGKILL.
//
// Usage:
//
//	ws, err := sandbox.NewWorkspace(sandbox.RealFileSystem{})
//	defer ws.Remove()
//	// write manifest and program ...
//	proc, err := launcher.Launch(ctx, port, ws.Dir())
//	defer proc.Kill()
//	report, err := fetcher.Fetch(ctx, port)
package sandbox
