package contract

// UpstreamError carries the minimal diagnostic information an HTTP-style
// upstream failure needs: a status code and a short message the pipeline
// can log as structured fields.
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}

