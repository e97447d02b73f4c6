package common

// LoginPageData contains data for the login page
type LoginPageData struct {
	Title     string
	Error     string
	CsrfToken string
}

// DashboardPageData contains data for the dashboard page
type DashboardPageData struct {
	Title            string
	CsrfToken        string
	TotalQueues      int
	OwnedQueues      int
	WarnedQueues     int
	WarnThreshold    int
	ArchiveThreshold int
	DeleteThreshold  int
	Queues           []QueueOverview
}

// UsersPageData contains data for the users page, including the registration form state
type UsersPageData struct {
	Title     string
	CsrfToken string
	Error     string
	Users     []UserResponse
}

// QueueOverview represents a guarded queue for dashboard display
type QueueOverview struct {
	Name    string
	Vhost   string
	Owner   string // empty if the queue has not been attributed yet
	Warned  bool
	Created string
}
