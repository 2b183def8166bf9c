package store

import (
	"context"
	"time"
)

// seedInitialTasks inserts the bootstrap task set when the queue has never
// held a row, so the assistant has something to do on first run.
func (s *Store) seedInitialTasks(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	in2h := s.now().Add(2 * time.Hour)

	seed := []AddTask{
		{
			Title: "Introduce myself to the user",
			Description: "Send a warm welcome message to the user explaining what I can do, " +
				"that I'm running privately on their device, and ask them a few questions " +
				"to start building my understanding of them.",
			Type:     TypePrepare,
			Priority: "high",
			Tags:     []string{"onboarding"},
		},
		{
			Title: "Learn about this machine and my own capabilities",
			Description: "Research what I can do on this hardware. Check available disk space, " +
				"RAM, which models are installed, what skills I have. Build a self-inventory " +
				"so I can accurately describe my capabilities to the user.",
			Type:     TypeReflect,
			Priority: "normal",
			Tags:     []string{"self-awareness"},
		},
		{
			Title: "Write a 'send_notification' skill",
			Description: "Write a skill that can send desktop or browser notifications to the user. " +
				"Try: notify-send on Linux, or a lightweight push to the UI. " +
				"This will let me proactively alert the user to things they care about.",
			Type:     TypeSelfImprove,
			Priority: "normal",
			Tags:     []string{"skills"},
		},
		{
			Title: "Write a 'calendar_check' skill",
			Description: "Write a skill that can read local calendar files (iCal format) or " +
				"query a CalDAV server. Store in workspace. This enables reminders and " +
				"schedule awareness.",
			Type:     TypeSelfImprove,
			Priority: "low",
			Tags:     []string{"skills", "calendar"},
		},
		{
			Title: "Reflect on what I know and what I should learn next",
			Description: "Review my current skill set, the user profile so far, and recent interactions. " +
				"Generate 5 new tasks that would make me more useful to this specific user. " +
				"Add them to my task queue.",
			Type:        TypeReflect,
			Priority:    "low",
			ScheduledAt: &in2h,
			Tags:        []string{"meta"},
		},
	}

	for _, t := range seed {
		if _, err := s.Add(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
