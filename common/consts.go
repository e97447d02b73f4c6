package common

const (
	// OS:
	WindowsOS = "windows"
	LinuxOS   = "linux"
	MacOS     = "darwin"

	// notification texts:
	UnknownExchange      = "could not be determined"
	WarningEmailSubject  = "Guardian: overgrowing queue warning"
	DeletionEmailSubject = "Guardian: deleted an overgrowing queue"

	// admin surfaces:
	SessionCookieName = "GuardianSession"
	ApiKeyHeader      = "X-API-Key"
)
