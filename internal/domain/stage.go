package domain

import (
	"slices"
	"time"
)

// Stage identifies one of the three ordered remote operations.
type Stage int

const (
	StageQuestionGeneration Stage = iota + 1
	StageQueryGeneration
	StageRecordScraping
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageQuestionGeneration, StageQueryGeneration, StageRecordScraping}

func (s Stage) String() string {
	switch s {
	case StageQuestionGeneration:
		return "question_generation"
	case StageQueryGeneration:
		return "query_generation"
	case StageRecordScraping:
		return "record_scraping"
	default:
		return "unknown"
	}
}

// StageStatus is the observable progress of a stage within a run.
type StageStatus int

const (
	StatusIdle StageStatus = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s StageStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition happens within the run.
func (s StageStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// StageState pairs a status with the payload of a succeeded stage.
type StageState[T any] struct {
	Status  StageStatus
	Payload T
}

// Succeeded builds a terminal success state.
func Succeeded[T any](payload T) StageState[T] {
	return StageState[T]{Status: StatusSucceeded, Payload: payload}
}

// Failed builds a terminal failure state.
func Failed[T any]() StageState[T] {
	return StageState[T]{Status: StatusFailed}
}

// Loading builds an in-flight state.
func Loading[T any]() StageState[T] {
	return StageState[T]{Status: StatusLoading}
}

// PipelineRun is the snapshot of one topic submission published to subscribers.
type PipelineRun struct {
	Seq       uint64
	RunID     string
	Topic     string
	StartedAt time.Time

	Questions StageState[QuestionSet]
	Queries   StageState[QuerySet]
	Records   StageState[RecordSet]
}

// NewPipelineRun starts a run with every stage idle.
func NewPipelineRun(seq uint64, runID, topic string, startedAt time.Time) PipelineRun {
	return PipelineRun{
		Seq:       seq,
		RunID:     runID,
		Topic:     topic,
		StartedAt: startedAt,
	}
}

// Status returns the status of the given stage.
func (r PipelineRun) Status(stage Stage) StageStatus {
	switch stage {
	case StageQuestionGeneration:
		return r.Questions.Status
	case StageQueryGeneration:
		return r.Queries.Status
	case StageRecordScraping:
		return r.Records.Status
	default:
		return StatusIdle
	}
}

// Complete reports whether the last stage reached a terminal state.
func (r PipelineRun) Complete() bool {
	return r.Records.Status.Terminal()
}

// Clone returns a deep copy so subscribers never share slices with the controller.
func (r PipelineRun) Clone() PipelineRun {
	out := r
	out.Questions.Payload = slices.Clone(r.Questions.Payload)
	out.Queries.Payload = slices.Clone(r.Queries.Payload)
	if r.Records.Payload != nil {
		records := make(RecordSet, len(r.Records.Payload))
		for i, rec := range r.Records.Payload {
			rec.Pico.Fields = slices.Clone(rec.Pico.Fields)
			records[i] = rec
		}
		out.Records.Payload = records
	}
	return out
}
