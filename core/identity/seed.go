package identity

import "time"

// Seeded identity IDs
const (
	SeedStudentID = "s1"
	SeedTeacherID = "t1"
	AdminID       = "admin_main"
)

// DefaultAdminEmail is the reserved administrative address.
const DefaultAdminEmail = "support@smartlearn.com"

// Admin returns the fixed administrative Identity.
func Admin(email string) Identity {
	if email == "" {
		email = DefaultAdminEmail
	}
	return Identity{
		ID:                   AdminID,
		Name:                 "Smartlearn Admin",
		Email:                NormalizeEmail(email),
		Role:                 RoleAdmin,
		Avatar:               "https://ui-avatars.com/api/?name=Admin&background=000&color=fff",
		SubscriptionStatus:   StatusActive,
		UnlockedLiveSessions: []string{},
		PurchasedBooks:       []string{},
	}
}

// Seed returns the sample Directory written on first run.
func Seed(now time.Time, adminEmail string) []Identity {
	studentExpiry := now.Add(5 * 24 * time.Hour).UTC()
	return []Identity{
		{
			ID:                   SeedStudentID,
			Name:                 "John Student",
			Email:                "student@smartlearn.mw",
			Role:                 RoleStudent,
			Avatar:               "https://ui-avatars.com/api/?name=John+Student&background=0D8ABC&color=fff",
			SubscriptionStatus:   StatusActive,
			CurrentPlan:          PlanWeekly,
			SubscriptionExpiry:   &studentExpiry,
			UnlockedLiveSessions: []string{},
			PurchasedBooks:       []string{},
		},
		{
			ID:                   SeedTeacherID,
			Name:                 "Dr. Sarah Smith",
			Email:                "teacher@smartlearn.mw",
			Role:                 RoleTeacher,
			Avatar:               "https://ui-avatars.com/api/?name=Sarah+Smith&background=random",
			SubscriptionStatus:   StatusActive,
			UnlockedLiveSessions: []string{},
			PurchasedBooks:       []string{},
		},
		Admin(adminEmail),
	}
}
