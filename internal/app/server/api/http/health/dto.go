package health

// Input is empty; the liveness probe takes no parameters.
type Input struct{}

// Output wraps the liveness response body.
type Output struct {
	Body Response
}

// Response reports whether the sync service is up.
type Response struct {
	Status string `json:"status" example:"OK" doc:"Liveness status of the sync service"`
}
