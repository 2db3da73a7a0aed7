package events

// Batch is the result of one successful fetch: the ordered events and the
// cursor to continue from.
type Batch struct {
	Events []Event `json:"events"`
	Next   Cursor  `json:"uuid"`
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// Outcome tags a fetch Result.
type Outcome int

const (
	// Success means Batch holds the fetched events.
	Success Outcome = iota
	// CursorRejected means the server refused the supplied cursor.
	CursorRejected
	// Failure means Err holds a transport, status or decoding failure.
	Failure
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case CursorRejected:
		return "cursor_rejected"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a fetch.
type Result struct {
	Outcome Outcome
	Batch   Batch
	Err     error

	// Reset reports that the supplied cursor was rejected and the batch
	// was fetched again without one.
	Reset bool
}

// Succeeded builds a Success result.
func Succeeded(b Batch) Result {
	return Result{Outcome: Success, Batch: b}
}

// Rejected builds a CursorRejected result.
func Rejected() Result {
	return Result{Outcome: CursorRejected}
}

// Failed builds a Failure result.
func Failed(err error) Result {
	return Result{Outcome: Failure, Err: err}
}
