// Package g3d is the retained-state GPU core of a real-time renderer.
//
// # Overview
//
// g3d assigns byte ranges in shared GPU buffers to logical objects, caches
// render pipelines keyed by (shader, material) and keeps cameras, models,
// lights and materials as retained records that are mirrored to the GPU
// once per frame. The host drives everything through numeric ids it
// chooses itself.
//
// # Quick Start
//
//	e, err := g3d.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := e.OpenBackend(gputypes.BackendVulkan); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Dispose()
//
//	e.CreateShader(1, wgsl)
//	e.CreateGeometry(1, g3d.GeometryDesc{Layout: g3d.PositionOnlyLayout, Vertices: tri})
//	e.CreateMaterial(1, g3d.MaterialDesc{Shader: 1})
//	e.CreateCamera(1, g3d.CameraDesc{Active: true, Width: 1280, Height: 720})
//	e.CreateModel(1, g3d.ModelDesc{Geometry: 1, Material: 1})
//
//	for running {
//	    e.Tick()
//	    e.SyncFrame()
//	    pipeline, _ := e.ResolvePipeline(1, 1)
//	    ...
//	}
//
// # Lifecycle
//
// An Engine moves from StateUninitialized to StateReady on Init,
// InitWithProvider, Open or OpenBackend, and to StateDisposed on Dispose.
// Commands outside StateReady fail with ErrNotInitialized; a second Init
// fails with ErrAlreadyInitialized. With the thread check enabled, the OS
// thread that initialized the engine is the only one allowed to issue
// commands; others get ErrWrongThread.
//
// # Buffers
//
// UploadBuffer copies host bytes into the engine under a 64-bit id with a
// type tag (see UploadKind). Create commands may consume those buffers.
// DownloadBuffer hands a buffer back exactly once as an OwnedBuffer.
//
// # Results
//
// Every error maps to a host Result code with ResultOf.
//
// # Logging
//
// g3d is silent by default. Call SetLogger to enable log/slog output.
package g3d
