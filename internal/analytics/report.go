package analytics

import (
	"sort"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Counts builds the participation snapshot. Students who hold a session but
// are missing from the eligible list still count as eligible.
func Counts(eligible []model.Student, sessions []model.ExamSession, results []model.Result) model.LiveCounts {
	population := make(map[int]struct{}, len(eligible))
	for _, s := range eligible {
		population[s.ID] = struct{}{}
	}

	var c model.LiveCounts
	attended := make(map[int]struct{}, len(sessions))
	for _, s := range sessions {
		population[s.StudentID] = struct{}{}
		attended[s.StudentID] = struct{}{}
		if s.Status != model.SessionStatusInProgress {
			continue
		}
		if s.IsSuspended {
			c.Suspended++
		} else {
			c.Active++
		}
	}
	for _, r := range results {
		population[r.StudentID] = struct{}{}
		attended[r.StudentID] = struct{}{}
	}

	c.Finished = len(results)
	c.Eligible = len(population)
	c.NotAttended = c.Eligible - len(attended)
	return c
}

// QuestionStats aggregates per-question accuracy, average time and the
// fastest correct responder, in exam order. Ties on time go to the earliest
// submission.
func QuestionStats(results []model.Result, questions []model.Question) []model.QuestionStat {
	type acc struct {
		stat      model.QuestionStat
		totalTime int
	}
	byID := make(map[string]*acc, len(questions))
	order := make([]string, 0, len(questions))
	for _, q := range questions {
		id := q.ID.String()
		byID[id] = &acc{stat: model.QuestionStat{QuestionID: id, Subject: q.Subject}}
		order = append(order, id)
	}

	for _, r := range results {
		for _, a := range r.Answers {
			qa, ok := byID[a.QuestionID]
			if !ok {
				continue
			}
			qa.stat.Attempts++
			qa.totalTime += a.TimeSpent
			if !a.IsCorrect {
				continue
			}
			qa.stat.Correct++
			if faster(qa.stat.Fastest, float64(a.TimeSpent), r) {
				qa.stat.Fastest = &model.Responder{
					StudentID:   r.StudentID,
					TimeSpent:   float64(a.TimeSpent),
					SubmittedAt: r.SubmittedAt,
				}
			}
		}
	}

	out := make([]model.QuestionStat, 0, len(order))
	for _, id := range order {
		qa := byID[id]
		if qa.stat.Attempts > 0 {
			qa.stat.Accuracy = float64(qa.stat.Correct) / float64(qa.stat.Attempts) * 100
			qa.stat.AvgTimeSpent = float64(qa.totalTime) / float64(qa.stat.Attempts)
		}
		out = append(out, qa.stat)
	}
	return out
}

// TopicStats rolls per-question stats up to subject tags, sorted by subject.
func TopicStats(stats []model.QuestionStat) []model.TopicStat {
	bySubject := make(map[string]*model.TopicStat)
	for _, s := range stats {
		t, ok := bySubject[s.Subject]
		if !ok {
			t = &model.TopicStat{Subject: s.Subject}
			bySubject[s.Subject] = t
		}
		t.Attempts += s.Attempts
		t.Correct += s.Correct
	}

	out := make([]model.TopicStat, 0, len(bySubject))
	for _, t := range bySubject {
		if t.Attempts > 0 {
			t.Accuracy = float64(t.Correct) / float64(t.Attempts) * 100
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// FastestOverall picks the result with the lowest average time per correct
// answer. Results without a correct answer are not candidates.
func FastestOverall(results []model.Result) *model.Responder {
	var best *model.Responder
	for _, r := range results {
		correct, total := 0, 0
		for _, a := range r.Answers {
			if a.IsCorrect {
				correct++
				total += a.TimeSpent
			}
		}
		if correct == 0 {
			continue
		}
		avg := float64(total) / float64(correct)
		if faster(best, avg, r) {
			best = &model.Responder{StudentID: r.StudentID, TimeSpent: avg, SubmittedAt: r.SubmittedAt}
		}
	}
	return best
}

func faster(current *model.Responder, t float64, r model.Result) bool {
	if current == nil || t < current.TimeSpent {
		return true
	}
	return t == current.TimeSpent && r.SubmittedAt.Before(current.SubmittedAt)
}

// TopOffenderLimit caps the offender list of the integrity report.
const TopOffenderLimit = 10

// Integrity builds the fleet-wide cheating-risk report. Participants are
// distinct students; a student is flagged when any of their attempts logged
// a violation and counted as suspended when any attempt was suspended.
// TopOffenders stays per attempt.
func Integrity(participants []model.Participant, byType map[model.ViolationType]int) model.IntegrityReport {
	rep := model.IntegrityReport{
		ByType:       byType,
		TopOffenders: []model.Participant{},
	}
	if rep.ByType == nil {
		rep.ByType = map[model.ViolationType]int{}
	}

	type standing struct{ flagged, suspended bool }
	students := make(map[int]*standing)

	var offenders []model.Participant
	for _, p := range participants {
		st, ok := students[p.StudentID]
		if !ok {
			st = &standing{}
			students[p.StudentID] = st
		}
		rep.TotalViolations += p.Violations
		if p.Violations > 0 {
			st.flagged = true
			offenders = append(offenders, p)
		}
		if p.Suspended {
			st.suspended = true
		}
	}

	rep.Participants = len(students)
	for _, st := range students {
		if st.flagged {
			rep.Flagged++
		}
		if st.suspended {
			rep.Suspended++
		}
	}

	if rep.Participants > 0 {
		rep.IntegrityScore = float64(rep.Participants-rep.Flagged) / float64(rep.Participants) * 100
	} else {
		rep.IntegrityScore = 100
	}

	sort.Slice(offenders, func(i, j int) bool {
		if offenders[i].Violations != offenders[j].Violations {
			return offenders[i].Violations > offenders[j].Violations
		}
		return offenders[i].StudentID < offenders[j].StudentID
	})
	if len(offenders) > TopOffenderLimit {
		offenders = offenders[:TopOffenderLimit]
	}
	rep.TopOffenders = append(rep.TopOffenders, offenders...)
	return rep
}
