// Package mastery tracks per-student, per-topic accuracy and derives the
// difficulty signal used when generating new quizzes.
package mastery

import (
	"context"
	"slices"
	"strings"
	"time"
)

// WeakThreshold is the accuracy below which a topic counts as weak.
const WeakThreshold = 0.5

// TopicStat holds attempt counts for one topic.
type TopicStat struct {
	Topic   string `json:"topic"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Accuracy returns Correct/Total, or 0 with no attempts.
func (s TopicStat) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Profile is a student's mastery summary.
type Profile struct {
	StudentID    string      `json:"student_id"`
	Topics       []TopicStat `json:"topics"`
	WeakTopics   []string    `json:"weak_topics"`
	MasteryIndex int         `json:"mastery_index"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Outcome is the graded result of one question.
type Outcome struct {
	Topic   string `json:"topic"`
	Correct bool   `json:"correct"`
}

// Store persists mastery profiles.
type Store interface {
	// GetProfile returns the student's profile, or an empty one if the
	// student has never submitted.
	GetProfile(ctx context.Context, studentID string) (Profile, error)
	// RecordResult applies outcomes to the student's profile atomically.
	RecordResult(ctx context.Context, studentID string, outcomes []Outcome) (Profile, error)
	// DifficultyFor returns the student's difficulty signal in [0,1].
	DifficultyFor(ctx context.Context, studentID string) (float64, error)
}

// Empty returns the zero-valued profile for a student.
func Empty(studentID string) Profile {
	return Profile{
		StudentID:  studentID,
		Topics:     []TopicStat{},
		WeakTopics: []string{},
	}
}

// Apply folds outcomes into p and recomputes the derived fields. The input
// profile is not modified.
func Apply(p Profile, outcomes []Outcome) Profile {
	topics := slices.Clone(p.Topics)
	index := make(map[string]int, len(topics))
	for i, s := range topics {
		index[s.Topic] = i
	}

	for _, o := range outcomes {
		i, ok := index[o.Topic]
		if !ok {
			topics = append(topics, TopicStat{Topic: o.Topic})
			i = len(topics) - 1
			index[o.Topic] = i
		}
		topics[i].Total++
		if o.Correct {
			topics[i].Correct++
		}
	}

	p.Topics = topics
	return Recompute(p)
}

// Recompute sorts topics by name and derives WeakTopics and MasteryIndex
// from the full topic set.
func Recompute(p Profile) Profile {
	topics := slices.Clone(p.Topics)
	if topics == nil {
		topics = []TopicStat{}
	}
	slices.SortFunc(topics, func(a, b TopicStat) int {
		return strings.Compare(a.Topic, b.Topic)
	})

	weak := []string{}
	var correct, total int
	for _, s := range topics {
		if s.Total <= 0 {
			continue
		}
		correct += s.Correct
		total += s.Total
		if s.Accuracy() < WeakThreshold {
			weak = append(weak, s.Topic)
		}
	}

	p.Topics = topics
	p.WeakTopics = weak
	p.MasteryIndex = 0
	if total > 0 {
		p.MasteryIndex = 100 * correct / total
	}
	return p
}

// Difficulty maps a profile to a difficulty signal in [0,1].
func Difficulty(p Profile) float64 {
	return float64(p.MasteryIndex) / 100
}
