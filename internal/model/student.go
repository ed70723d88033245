package model

// Student is the slice of a student record the document pipeline needs.
// BatchYear is the cohort bucket that partitions uploads on disk.
type Student struct {
	ID        int64 `json:"id"`
	BatchYear int   `json:"batch_year"`
}
