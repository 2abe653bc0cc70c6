// Package batch records GPU commands into a replayable value.
//
// A Batch is an ordered list of (Command, param offset) pairs. Scalar
// parameters are stored in a flat Param pool and blobs (matrices, colors,
// rectangles) in a flat byte pool. Resources are referenced through small
// per-batch tables so a command stream never holds pointers inline.
//
// A Batch never touches a native graphics API. Backends walk it with
// [Batch.At] and read parameters in the layout documented on each
// [Command] constant. That layout is the contract shared by every backend.
//
// # Example
//
//	b := batch.New("opaque")
//	b.SetFramebuffer(fb)
//	b.ClearFramebuffer(batch.ClearColor0|batch.ClearDepth, mgl32.Vec4{0, 0, 0, 1}, 1, 0, false)
//	b.SetPipeline(pipeline)
//	b.SetInputFormat(format)
//	b.SetInputBuffer(0, vertices, 0, 16)
//	b.SetModelTransform(model)
//	b.Draw(batch.Triangles, 36, 0)
package batch
