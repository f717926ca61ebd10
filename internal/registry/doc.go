// Package registry holds the host-side records of the retained-state core.
//
// ResourceRegistry owns shared assets (shaders, geometry, textures,
// materials). ComponentRegistry owns per-entity records (cameras, models,
// lights, material blocks) whose uniform payloads mirror into the region
// buffers of internal/gpu.
//
// Records are keyed by caller-chosen uint32 ids. Creating under a live id
// fails with ErrIDCollision; updating or disposing an unknown id fails with
// ErrNotFound.
//
// # Dirty protocol
//
// A component is dirty from creation and after every mutation. Sync writes
// each dirty payload to its region slot and clears the flag only when the
// write succeeded, so a failed or skipped record is retried next frame.
// Region slots are assigned once and never move; when a region buffer is
// resized the owner calls MarkClassDirty so every record of that class is
// written again into the new buffer.
//
// # Teardown
//
// DropAll on both registries releases GPU objects in dependency order:
// views before the textures they view, every camera's views before any
// camera's textures, materials before the shaders and textures they use.
package registry
