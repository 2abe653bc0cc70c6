package batch

// Command identifies a recorded command. Each constant documents its
// parameter layout in pool order. Entries marked [table] are indices into
// the batch resource table of that kind; entries marked [data] are byte
// offsets into the data pool.
type Command uint8

const (
	// CmdDraw: primitive, vertex count, start vertex.
	CmdDraw Command = iota
	// CmdDrawIndexed: primitive, index count, start index.
	CmdDrawIndexed
	// CmdDrawInstanced: instances, primitive, vertex count, start vertex,
	// start instance.
	CmdDrawInstanced
	// CmdDrawIndexedInstanced: instances, primitive, index count,
	// start index, start instance.
	CmdDrawIndexedInstanced

	// CmdSetInputFormat: format [table].
	CmdSetInputFormat
	// CmdSetInputBuffer: slot, buffer [table], offset, stride.
	CmdSetInputBuffer
	// CmdSetIndexBuffer: index type, buffer [table], offset.
	CmdSetIndexBuffer

	// CmdSetModelTransform: matrix [data].
	CmdSetModelTransform
	// CmdSetViewTransform: matrix [data], camera flag. The camera flag
	// means the matrix is a camera-to-world transform to be inverted.
	CmdSetViewTransform
	// CmdSetProjectionTransform: matrix [data].
	CmdSetProjectionTransform
	// CmdSetViewportTransform: rect [data].
	CmdSetViewportTransform
	// CmdSetDepthRangeTransform: near, far.
	CmdSetDepthRangeTransform

	// CmdSetPipeline: pipeline [table].
	CmdSetPipeline
	// CmdSetStateBlendFactor: color [data].
	CmdSetStateBlendFactor
	// CmdSetStateScissorRect: rect [data].
	CmdSetStateScissorRect
	// CmdSetStencilReference: reference.
	CmdSetStencilReference

	// CmdSetUniformBuffer: slot, buffer [table], offset, size.
	CmdSetUniformBuffer
	// CmdSetResourceBuffer: slot, buffer [table].
	CmdSetResourceBuffer
	// CmdSetResourceTexture: slot, texture [table].
	CmdSetResourceTexture

	// CmdSetFramebuffer: framebuffer [table]; nil selects the default target.
	CmdSetFramebuffer
	// CmdClearFramebuffer: masks, color [data], depth, stencil, use scissor.
	CmdClearFramebuffer
	// CmdBlit: source [table], source rect [data], destination [table],
	// destination rect [data].
	CmdBlit
	// CmdGenerateTextureMips: texture [table].
	CmdGenerateTextureMips

	// CmdBeginQuery: query [table].
	CmdBeginQuery
	// CmdEndQuery: query [table].
	CmdEndQuery
	// CmdGetQuery: query [table].
	CmdGetQuery

	// CmdResetStages: no params.
	CmdResetStages
	// CmdDisableContextViewCorrection: no params.
	CmdDisableContextViewCorrection
	// CmdRestoreContextViewCorrection: no params.
	CmdRestoreContextViewCorrection
	// CmdDisableContextStereo: no params.
	CmdDisableContextStereo
	// CmdRestoreContextStereo: no params.
	CmdRestoreContextStereo

	// CmdRunLambda: lambda [table].
	CmdRunLambda
	// CmdStartNamedCall: name [table].
	CmdStartNamedCall
	// CmdStopNamedCall: no params.
	CmdStopNamedCall
	// CmdPushProfileRange: name [table].
	CmdPushProfileRange
	// CmdPopProfileRange: no params.
	CmdPopProfileRange

	// NumCommands is the number of command tags.
	NumCommands
)

// commandNames maps Command values to their string representation.
var commandNames = [...]string{
	CmdDraw:                         "Draw",
	CmdDrawIndexed:                  "DrawIndexed",
	CmdDrawInstanced:                "DrawInstanced",
	CmdDrawIndexedInstanced:         "DrawIndexedInstanced",
	CmdSetInputFormat:               "SetInputFormat",
	CmdSetInputBuffer:               "SetInputBuffer",
	CmdSetIndexBuffer:               "SetIndexBuffer",
	CmdSetModelTransform:            "SetModelTransform",
	CmdSetViewTransform:             "SetViewTransform",
	CmdSetProjectionTransform:       "SetProjectionTransform",
	CmdSetViewportTransform:         "SetViewportTransform",
	CmdSetDepthRangeTransform:       "SetDepthRangeTransform",
	CmdSetPipeline:                  "SetPipeline",
	CmdSetStateBlendFactor:          "SetStateBlendFactor",
	CmdSetStateScissorRect:          "SetStateScissorRect",
	CmdSetStencilReference:          "SetStencilReference",
	CmdSetUniformBuffer:             "SetUniformBuffer",
	CmdSetResourceBuffer:            "SetResourceBuffer",
	CmdSetResourceTexture:           "SetResourceTexture",
	CmdSetFramebuffer:               "SetFramebuffer",
	CmdClearFramebuffer:             "ClearFramebuffer",
	CmdBlit:                         "Blit",
	CmdGenerateTextureMips:          "GenerateTextureMips",
	CmdBeginQuery:                   "BeginQuery",
	CmdEndQuery:                     "EndQuery",
	CmdGetQuery:                     "GetQuery",
	CmdResetStages:                  "ResetStages",
	CmdDisableContextViewCorrection: "DisableContextViewCorrection",
	CmdRestoreContextViewCorrection: "RestoreContextViewCorrection",
	CmdDisableContextStereo:         "DisableContextStereo",
	CmdRestoreContextStereo:         "RestoreContextStereo",
	CmdRunLambda:                    "RunLambda",
	CmdStartNamedCall:               "StartNamedCall",
	CmdStopNamedCall:                "StopNamedCall",
	CmdPushProfileRange:             "PushProfileRange",
	CmdPopProfileRange:              "PopProfileRange",
}

// String returns the string representation of a Command.
func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "Unknown"
}

// IsDraw reports whether c is one of the draw commands.
func (c Command) IsDraw() bool { return c <= CmdDrawIndexedInstanced }

// paramCounts is the number of params each command records.
var paramCounts = [NumCommands]int{
	CmdDraw:                   3,
	CmdDrawIndexed:            3,
	CmdDrawInstanced:          5,
	CmdDrawIndexedInstanced:   5,
	CmdSetInputFormat:         1,
	CmdSetInputBuffer:         4,
	CmdSetIndexBuffer:         3,
	CmdSetModelTransform:      1,
	CmdSetViewTransform:       2,
	CmdSetProjectionTransform: 1,
	CmdSetViewportTransform:   1,
	CmdSetDepthRangeTransform: 2,
	CmdSetPipeline:            1,
	CmdSetStateBlendFactor:    1,
	CmdSetStateScissorRect:    1,
	CmdSetStencilReference:    1,
	CmdSetUniformBuffer:       4,
	CmdSetResourceBuffer:      2,
	CmdSetResourceTexture:     2,
	CmdSetFramebuffer:         1,
	CmdClearFramebuffer:       5,
	CmdBlit:                   4,
	CmdGenerateTextureMips:    1,
	CmdBeginQuery:             1,
	CmdEndQuery:               1,
	CmdGetQuery:               1,
	CmdRunLambda:              1,
	CmdStartNamedCall:         1,
	CmdPushProfileRange:       1,
}

// ParamCount returns the number of params c records.
func (c Command) ParamCount() int {
	if c >= NumCommands {
		return 0
	}
	return paramCounts[c]
}

// Primitive is the topology of a draw.
type Primitive uint32

const (
	Points Primitive = iota
	Lines
	LineStrip
	Triangles
	TriangleStrip
)

var primitiveNames = [...]string{
	Points:        "Points",
	Lines:         "Lines",
	LineStrip:     "LineStrip",
	Triangles:     "Triangles",
	TriangleStrip: "TriangleStrip",
}

// String returns the primitive name.
func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "Unknown"
}

// IndexType is the element type of an index buffer.
type IndexType uint32

const (
	Uint16 IndexType = iota
	Uint32
)

// ClearMask selects the framebuffer planes cleared by ClearFramebuffer.
type ClearMask uint32

const (
	ClearColor0 ClearMask = 1 << iota
	ClearColor1
	ClearColor2
	ClearColor3
	ClearDepth
	ClearStencil

	ClearColorAll = ClearColor0 | ClearColor1 | ClearColor2 | ClearColor3
	ClearAll      = ClearColorAll | ClearDepth | ClearStencil
)
