// Package fdpipe implements anonymous pipes for a multitasking kernel.
//
// A pipe is a pair of endpoints, a read end and a write end, that share one
// fixed-capacity buffer. Tasks refer to endpoints through task-local integer
// descriptors. Endpoints can be shared between tasks by forking, and each end
// is torn down only when the last task referencing it closes its descriptor.
//
// Transfers never block: Task.Read returns whatever is buffered, possibly
// nothing, and Task.Write accepts only what fits. When the last writer closes
// its end an end-of-stream marker is queued behind the remaining data. The
// buffer is released when the read end dies.
//
// Reader and Writer wrap a descriptor in the io interfaces for callers that
// prefer to wait for data or space instead of polling.
package fdpipe
