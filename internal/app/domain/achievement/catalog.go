package achievement

// Catalog is the seeded set of achievement definitions. Rows are static;
// nothing writes to this table at runtime.
var Catalog = []Definition{
	{ID: "first_task", Name: "First Task", Category: CategoryTasks, Threshold: 1},
	{ID: "tasks_10", Name: "Getting Things Done", Category: CategoryTasks, Threshold: 10},
	{ID: "tasks_100", Name: "Centurion", Category: CategoryTasks, Threshold: 100,
		Perk: &Perk{Type: PerkMaxTasks, Value: 25}},
	{ID: "tasks_500", Name: "Taskmaster", Category: CategoryTasks, Threshold: 500,
		Perk: &Perk{Type: PerkMaxTasks, Value: 50}},

	{ID: "streak_7", Name: "Week Streak", Category: CategoryStreaks, Threshold: 7,
		Perk: &Perk{Type: PerkDailyCredits, Value: 5}},
	{ID: "streak_30", Name: "Monthly Streak", Category: CategoryStreaks, Threshold: 30,
		Perk: &Perk{Type: PerkDailyCredits, Value: 10}},
	{ID: "streak_100", Name: "Centurion Streak", Category: CategoryStreaks, Threshold: 100,
		Perk: &Perk{Type: PerkDailyCredits, Value: 20}},

	{ID: "focus_25", Name: "Focused", Category: CategoryFocus, Threshold: 25},
	{ID: "focus_100", Name: "Deep Work", Category: CategoryFocus, Threshold: 100,
		Perk: &Perk{Type: PerkMaxTasks, Value: 10}},

	{ID: "notes_first_converted", Name: "Idea to Action", Category: CategoryNotes, Threshold: 1},
	{ID: "notes_converted_25", Name: "Note Alchemist", Category: CategoryNotes, Threshold: 25,
		Perk: &Perk{Type: PerkMaxNotes, Value: 10}},
}

// ByCategory returns the catalog entries for a single category.
func ByCategory(category Category) []Definition {
	var out []Definition
	for _, def := range Catalog {
		if def.Category == category {
			out = append(out, def)
		}
	}
	return out
}

// ByID looks up a single definition.
func ByID(id string) (Definition, bool) {
	for _, def := range Catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
