// Package engine boots the runtime from its core module.
//
// A [Bootstrap] resolves the core module named by the configuration
// (cfboot.core.name, optionally pinned by cfboot.core.version), extracts the
// bundles embedded under bundles/ in the core jar into the bundle directory,
// starts the core through the resolver and hands it to a [Factory] that
// produces the [Engine].
//
// The result is a [RuntimeContext]. Callers receive it from
// [Bootstrap.GetOrStart] and pass it on; [Bootstrap.Current] exists for
// code that cannot take it as a parameter.
//
// [Bootstrap.Restart] is guarded by the engine's [CapRestart] capability.
// [Bootstrap.Shutdown] stops modules in dependency order:
//
//	rc, err := boot.GetOrStart(ctx, nil)
//	...
//	defer boot.Shutdown(ctx)
package engine
