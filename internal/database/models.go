package database

// Run is one stored pipeline run.
type Run struct {
	ID           string
	CreatedAt    string
	Summary      string
	KeyPoints    []string
	Report       string
	Fallback     bool
	ItemCount    int
	SuccessCount int
	ContentTypes []string
	Results      []RunResult
}

// RunResult is one analysis result of a run, in dispatch order.
type RunResult struct {
	Position        int
	ContentType     string
	OriginalContent string
	Analysis        string
	Summary         string
	KeyPoints       []string
	Confidence      float64
}

// Stats summarizes the stored history.
type Stats struct {
	Runs          int
	Results       int
	UsableResults int
	ByType        map[string]int
	LastRunAt     string
}
