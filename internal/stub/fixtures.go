package stub

import "pmstation-client/internal/domain"

// FixtureProject возвращает демо-проект, с которым стартует стаб.
// Коды страниц пустые: они заполняются генерацией, как на настоящем бэкенде.
func FixtureProject() *domain.DemoProject {
	return &domain.DemoProject{
		ProjectName: "Acme Task Tracker",
		Platforms: []domain.DemoPlatform{
			{
				Type:    domain.PlatformPC,
				Subtype: "web",
				Pages: []domain.DemoPage{
					{
						ID:          "dashboard",
						Name:        "Dashboard",
						Path:        "/dashboard",
						Description: "Overview of projects and recent activity",
						Order:       0,
						Status:      domain.PageStatusPending,
						Transitions: []domain.PageTransition{
							{TargetPageID: "tasks", Trigger: "open_tasks"},
							{TargetPageID: "settings", Trigger: "open_settings"},
						},
					},
					{
						ID:          "tasks",
						Name:        "Task Board",
						Path:        "/tasks",
						Description: "Kanban board with task cards",
						Order:       1,
						Status:      domain.PageStatusPending,
						Transitions: []domain.PageTransition{
							{TargetPageID: "dashboard", Trigger: "back"},
						},
					},
					{
						ID:          "settings",
						Name:        "Settings",
						Path:        "/settings",
						Description: "Workspace and notification settings",
						Order:       2,
						Status:      domain.PageStatusPending,
					},
				},
				Navigation: domain.PlatformNavigation{
					Type:  "sidebar",
					Items: []string{"dashboard", "tasks", "settings"},
				},
			},
			{
				Type:    domain.PlatformMobile,
				Subtype: "ios",
				Pages: []domain.DemoPage{
					{
						ID:          "m-home",
						Name:        "Home",
						Path:        "/home",
						Description: "Mobile home screen with today's tasks",
						Order:       0,
						Status:      domain.PageStatusPending,
						Transitions: []domain.PageTransition{
							{TargetPageID: "m-profile", Trigger: "open_profile"},
						},
					},
					{
						ID:          "m-profile",
						Name:        "Profile",
						Path:        "/profile",
						Description: "User profile and preferences",
						Order:       1,
						Status:      domain.PageStatusPending,
					},
				},
				Navigation: domain.PlatformNavigation{
					Type:  "bottom",
					Items: []string{"m-home", "m-profile"},
				},
			},
		},
		SharedState: map[string]interface{}{
			"userName":  "Alex",
			"workspace": "Acme Inc",
		},
	}
}
