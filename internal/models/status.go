package models

import "fmt"

// StatusKind tags the outcome of a learning operation
type StatusKind string

const (
	StatusLearned        StatusKind = "learned"
	StatusNothingToLearn StatusKind = "nothing_to_learn"
	StatusNothingNew     StatusKind = "nothing_new"
	StatusNoHistory      StatusKind = "no_history"
	StatusFailed         StatusKind = "failed"
)

// Status is the result of LearnDocument and LearnFromHistory.
// Ingestion failures are reported here instead of as errors.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
	Source  string     `json:"source,omitempty"`
	Count   int        `json:"count,omitempty"` // passages added, or turns learned for history
}

// OK reports whether the operation changed the knowledge store
func (s Status) OK() bool {
	return s.Kind == StatusLearned
}

func (s Status) String() string {
	return s.Message
}

// NothingToLearn is returned when a document produced no passages
func NothingToLearn(source string) Status {
	return Status{Kind: StatusNothingToLearn, Message: "No content to learn.", Source: source}
}

// DocumentLearned is returned after a document's passages are durable
func DocumentLearned(source, name string, passages int) Status {
	return Status{
		Kind:    StatusLearned,
		Message: fmt.Sprintf("Finished learning '%s'!", name),
		Source:  source,
		Count:   passages,
	}
}

// HistoryLearned is returned after unlearned turns were ingested and flagged
func HistoryLearned(turns int) Status {
	return Status{
		Kind:    StatusLearned,
		Message: fmt.Sprintf("Learned from %d new messages.", turns),
		Count:   turns,
	}
}

// NoHistory is returned when the chat log is missing, empty or unreadable
func NoHistory() Status {
	return Status{Kind: StatusNoHistory, Message: "No chat history found."}
}

// NothingNew is returned when every turn has already been learned
func NothingNew() Status {
	return Status{Kind: StatusNothingNew, Message: "No new conversations to learn."}
}

// Failed wraps an operation failure in a user-safe message
func Failed(message string, source string) Status {
	return Status{Kind: StatusFailed, Message: message, Source: source}
}

// Conversational operations reported in EngineState
const (
	OperationAsk           = "ask"
	OperationLearnDocument = "learn_document"
	OperationLearnHistory  = "learn_history"
)

// EngineState is published whenever the engine becomes busy or idle
type EngineState struct {
	Busy      bool   `json:"busy"`
	Operation string `json:"operation"`
}
