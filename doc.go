// Package kernels discovers Jupyter kernel specs and launches kernel
// processes, handling the connection bootstrap: port allocation, connection
// file creation, argv placeholder expansion, environment merging, process
// supervision, and ZeroMQ channel setup.
//
// # Basic Usage
//
//	import "github.com/notebook-eng/kernels"
//
//	ctx := context.Background()
//
//	launcher, err := kernels.NewLauncher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	kernel, err := launcher.Launch(ctx, "python3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer kernel.Shutdown(0) // 0 uses the launcher's stop timeout
//
//	ch, err := kernel.Channels()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ch.Heartbeat(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	info, err := ch.KernelInfo(ctx)
//	// Use the kernel...
//
// # Discovery
//
// Kernel specs are found on the standard search path (JUPYTER_PATH, the
// per-user data directory, system directories); use a Registry directly to
// enumerate them:
//
//	registry := kernels.NewRegistry()
//	specs, err := registry.FindAll(ctx)
//
// There is no ambient process-global registry: every Registry and Launcher
// is an explicit value, so tests and embedders can run several side by side
// with different search paths and runtime directories.
//
// # Errors
//
// Failures are classified by sentinel errors (ErrSpecNotFound,
// ErrPortAllocation, ErrConnectionFile, ErrSpawn, ErrChannelOpen, ...)
// wrapped with context; match them with errors.Is. Launch performs no
// internal retries.
package kernels
