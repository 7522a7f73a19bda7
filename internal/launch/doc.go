// Package launch spawns kernel processes from kernel specs and assembles the
// per-kernel resources: allocated ports, the connection file, the child
// process, and the messaging channels.
//
// A launch is a strictly ordered sequence with no internal retries: allocate
// ports, write the connection file, expand argv, merge the environment,
// start the process, register cleanup, open channels. Every failure surfaces
// to the caller; resources acquired before the failure are released, except
// that a channel-open failure leaves the running kernel to the caller's
// discretion.
package launch
