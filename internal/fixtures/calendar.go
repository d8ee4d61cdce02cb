package fixtures

import (
	"time"

	"alma.org.ar/internal/schema"
)

// RecentWindow is how far back a past session may still show as cancelled.
const RecentWindow = 14 * 24 * time.Hour

// GenerateInstances lists one instance per cadence step from series.Start
// through series.End inclusive. Kinds alternate strictly by tick. Status
// depends only on the date relative to today:
//
//	date < today-14d                 completed
//	date < today, tick%3 == 0        cancelled
//	date < today                     completed
//	otherwise                        scheduled
func GenerateInstances(series Series, today Date) []Instance {
	if series.CadenceDays <= 0 || len(series.Kinds) == 0 || series.Start.IsZero() {
		return nil
	}
	day := truncateDay(today.Time)
	recent := day.Add(-RecentWindow)

	var out []Instance
	for tick, d := 0, truncateDay(series.Start.Time); !d.After(series.End.Time); tick, d = tick+1, d.AddDate(0, 0, series.CadenceDays) {
		kind := series.Kinds[tick%len(series.Kinds)]
		out = append(out, Instance{
			Tick:      tick,
			Kind:      kind,
			SourceID:  series.Sources[kind],
			Date:      Date{d},
			StartTime: series.StartTime,
			EndTime:   series.EndTime,
			Status:    instanceStatus(tick, d, day, recent),
		})
	}
	return out
}

func instanceStatus(tick int, d, today, recent time.Time) string {
	switch {
	case d.Before(recent):
		return schema.CalendarCompleted
	case d.Before(today):
		if tick%3 == 0 {
			return schema.CalendarCancelled
		}
		return schema.CalendarCompleted
	default:
		return schema.CalendarScheduled
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GenerateAssignments staffs every instance with coordinators[tick mod len]
// and coCoordinators[tick mod len]. When both picks are the same volunteer
// only the coordinator row is produced.
func GenerateAssignments(instances []Instance, coordinators, coCoordinators []int) []Assignment {
	if len(coordinators) == 0 {
		return nil
	}
	out := make([]Assignment, 0, 2*len(instances))
	for _, inst := range instances {
		coord := coordinators[inst.Tick%len(coordinators)]
		out = append(out, Assignment{Tick: inst.Tick, Role: schema.RoleCoordinator, VolunteerID: coord})
		if len(coCoordinators) == 0 {
			continue
		}
		co := coCoordinators[inst.Tick%len(coCoordinators)]
		if co != coord {
			out = append(out, Assignment{Tick: inst.Tick, Role: schema.RoleCoCoordinator, VolunteerID: co})
		}
	}
	return out
}
