package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
const (
	PageLogin     = "login"
	PageRegister  = "register"
	PageDashboard = "dashboard"
	PageForbidden = "forbidden"
	PageLoading   = "loading"
)

// Template paths.
const (
	// TemplatePathFromRoot is the path used by the server when run from the repo root.
	TemplatePathFromRoot = "frontend/templates"
	// TemplatePathFromTest is the path used by tests in this package.
	TemplatePathFromTest = "../../frontend/templates"
)

// Query parameters understood by the sign-in page.
const (
	registeredParam  = "registered"
	noticeRegistered = "Registration successful! Please login."
)

// loadingRefreshSeconds is how long the placeholder page waits before retrying.
const loadingRefreshSeconds = 1
