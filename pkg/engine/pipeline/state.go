package pipeline

// State is the lifecycle position of a render pipeline. Transitions run
// strictly forward; StateFailed is terminal and reachable from any
// non-terminal state.
type State string

const (
	StateNew              State = "new"
	StateInitialized      State = "initialized"
	StateLayoutCalculated State = "layout_calculated"
	// StateDataProcessing and StateElementRendering interleave per chunk
	// while the stream runs; the pipeline reports StateDataProcessing for
	// the whole interleaved phase.
	StateDataProcessing   State = "data_processing"
	StateElementRendering State = "element_rendering"
	StateAssembling       State = "assembling"
	StateFinalized        State = "finalized"
	StateFailed           State = "failed"
)
