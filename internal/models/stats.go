package models

// LastLearned placeholders
const (
	LastLearnedNone        = "N/A"           // store holds no data
	LastLearnedUnavailable = "Not available" // sources recorded but none could be stat'ed
)

// LearningStats summarises what the companion has learned
type LearningStats struct {
	DocCount    int     `json:"doc_count"`
	WordCount   int     `json:"word_count"`
	LastLearned string  `json:"last_learned"` // YYYY-MM-DD
	AllText     string  `json:"all_text"`
	DBSize      float64 `json:"db_size"` // megabytes
}
